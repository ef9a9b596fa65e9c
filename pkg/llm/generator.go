package llm

import (
	"fmt"

	"github.com/calebmt/groundwork/internal/types"
)

// GeneratorConfig selects and configures an answer backend. Backend is
// "ollama" for a local inference daemon or "openai" for any hosted
// OpenAI-compatible chat completion API.
type GeneratorConfig struct {
	Backend     string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
}

// NewWithConfig builds the backend named by the config. Backend
// selection is a pure routing decision; callers hold no model-specific
// logic.
func NewWithConfig(config GeneratorConfig) (types.Generator, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	switch config.Backend {
	case "", "ollama":
		return newOllamaGenerator(config)
	case "openai":
		return newOpenAIGenerator(config)
	}
	return nil, fmt.Errorf("unknown generator backend %q", config.Backend)
}
