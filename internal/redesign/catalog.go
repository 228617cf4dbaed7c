package redesign

import (
	_ "embed"
	"fmt"

	"github.com/koios/arqia/pkg/models"
)

//go:embed styles.yaml
var defaultStyles []byte

// Catalog is an immutable, ordered set of styles.
type Catalog struct {
	styles []models.StyleDefinition
	byID   map[string]int
}

// NewCatalog builds a catalog from already validated styles.
func NewCatalog(styles []models.StyleDefinition) *Catalog {
	c := &Catalog{
		styles: make([]models.StyleDefinition, len(styles)),
		byID:   make(map[string]int, len(styles)),
	}
	copy(c.styles, styles)
	for i, s := range c.styles {
		c.byID[s.ID] = i
	}
	return c
}

// DefaultCatalog returns the built-in styles.
func DefaultCatalog() *Catalog {
	styles, err := models.ParseStyles(defaultStyles)
	if err != nil {
		panic(fmt.Sprintf("embedded style catalog is invalid: %v", err))
	}
	return NewCatalog(styles)
}

// LoadCatalogFile reads an operator supplied catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	styles, err := models.LoadStyles(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(styles), nil
}

// Lookup resolves a style id.
func (c *Catalog) Lookup(id string) (models.StyleDefinition, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.StyleDefinition{}, &Error{Kind: KindUnknownStyle, Detail: fmt.Sprintf("unknown style %q", id)}
	}
	return c.styles[i], nil
}

// List returns the styles in catalog order.
func (c *Catalog) List() []models.StyleDefinition {
	out := make([]models.StyleDefinition, len(c.styles))
	copy(out, c.styles)
	return out
}
