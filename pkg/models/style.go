package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// StyleDefinition describes one decorating style offered to users.
// Icon, Color and Gradient are presentation metadata and are never read by the
// generation core.
type StyleDefinition struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Prompt   string   `yaml:"prompt" json:"prompt"`
	Icon     string   `yaml:"icon,omitempty" json:"icon,omitempty"`
	Color    string   `yaml:"color,omitempty" json:"color,omitempty"`
	Gradient []string `yaml:"gradient,omitempty" json:"gradient,omitempty"`
}

// StyleFile is the on-disk layout of a style catalog.
type StyleFile struct {
	Styles []StyleDefinition `yaml:"styles"`
}

// ParseStyles decodes a YAML style catalog and validates every entry.
func ParseStyles(data []byte) ([]StyleDefinition, error) {
	var file StyleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse style catalog: %w", err)
	}

	if len(file.Styles) == 0 {
		return nil, fmt.Errorf("style catalog defines no styles")
	}

	seen := make(map[string]struct{}, len(file.Styles))
	for i, style := range file.Styles {
		id := strings.TrimSpace(style.ID)
		if id == "" {
			return nil, fmt.Errorf("style #%d has an empty id", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate style id: %s", id)
		}
		if strings.TrimSpace(style.Prompt) == "" {
			return nil, fmt.Errorf("style %s has an empty prompt", id)
		}
		if style.Color != "" && !isValidColor(style.Color) {
			return nil, fmt.Errorf("style %s has an invalid color %q", id, style.Color)
		}
		for _, c := range style.Gradient {
			if !isValidColor(c) {
				return nil, fmt.Errorf("style %s has an invalid gradient color %q", id, c)
			}
		}
		seen[id] = struct{}{}

		file.Styles[i].ID = id
		if file.Styles[i].Name == "" {
			file.Styles[i].Name = id
		}
	}

	return file.Styles, nil
}

// LoadStyles reads a style catalog from a YAML file.
func LoadStyles(path string) ([]StyleDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style catalog: %w", err)
	}
	return ParseStyles(data)
}

// isValidColor accepts #RRGGBB hex colors
func isValidColor(color string) bool {
	if len(color) != 7 || color[0] != '#' {
		return false
	}
	for i := 1; i < 7; i++ {
		c := color[i]
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}
