package redesign

import "github.com/koios/arqia/pkg/models"

const (
	// DefaultPositive is appended to every style prompt.
	DefaultPositive = "highly detailed, 8k resolution, photorealistic, masterpiece, ray tracing, sharp focus, professional interior photography, unreal engine 5.4 render, architectural digest quality"
	// DefaultNegative lists what the model should avoid.
	DefaultNegative = "lowres, bad anatomy, bad proportions, blurry, cropped, deformed furniture, distorted architecture, floating objects, grainy, low quality, messy, out of focus, plastic texture, ugly, warped walls, watermarks, cartoon, anime, illustration"
)

// TechnicalParams holds the style independent generation settings.
type TechnicalParams struct {
	Positive      string  `yaml:"positive"`
	Negative      string  `yaml:"negative"`
	Steps         int     `yaml:"steps"`
	GuidanceScale float64 `yaml:"guidance_scale"`
	Strength      float64 `yaml:"strength"`
	NumOutputs    int     `yaml:"num_outputs"`
	Width         int     `yaml:"width"`
	Height        int     `yaml:"height"`
}

// DefaultTechnicalParams returns the tuned defaults for room redesigns.
func DefaultTechnicalParams() TechnicalParams {
	return TechnicalParams{
		Positive:      DefaultPositive,
		Negative:      DefaultNegative,
		Steps:         40,
		GuidanceScale: 7.5,
		Strength:      0.45,
		NumOutputs:    1,
		Width:         1024,
		Height:        1024,
	}
}

// PromptPayload is everything sent to the backend besides the image.
type PromptPayload struct {
	StyleID        string
	Prompt         string
	NegativePrompt string
	Steps          int
	GuidanceScale  float64
	Strength       float64
	NumOutputs     int
	Width          int
	Height         int
}

// Builder composes prompts from a catalog.
type Builder struct {
	catalog *Catalog
}

// NewBuilder creates a prompt builder.
func NewBuilder(catalog *Catalog) *Builder {
	return &Builder{catalog: catalog}
}

// Compose joins the style prompt and the positive qualifiers with one space.
func (b *Builder) Compose(styleID string, params TechnicalParams) (PromptPayload, error) {
	style, err := b.catalog.Lookup(styleID)
	if err != nil {
		return PromptPayload{}, err
	}
	return compose(style, params), nil
}

func compose(style models.StyleDefinition, params TechnicalParams) PromptPayload {
	return PromptPayload{
		StyleID:        style.ID,
		Prompt:         style.Prompt + " " + params.Positive,
		NegativePrompt: params.Negative,
		Steps:          params.Steps,
		GuidanceScale:  params.GuidanceScale,
		Strength:       params.Strength,
		NumOutputs:     params.NumOutputs,
		Width:          params.Width,
		Height:         params.Height,
	}
}
