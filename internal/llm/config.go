package llm

// ModelTier selects the capability level used for a call.
type ModelTier string

const (
	// TierLite covers cheap per-candidate scoring calls.
	TierLite ModelTier = "lite"
	// TierStandard covers moderate structured-output work.
	TierStandard ModelTier = "standard"
)

// Config holds the model selection per tier.
type Config struct {
	Models map[ModelTier]string
}

// DefaultConfig returns the default Gemini model mapping.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
	}
}

// Model returns the model name for a tier, falling back to the standard tier
// and then to any configured model.
func (c *Config) Model(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	for _, model := range c.Models {
		return model
	}
	return ""
}
