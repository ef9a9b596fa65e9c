package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding server URL is required",
		})
	} else if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding server URL",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedding.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	switch c.LLM.Backend {
	case "ollama", "openai":
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.backend",
			Message: fmt.Sprintf("unknown backend %q (want \"ollama\" or \"openai\")", c.LLM.Backend),
		})
	}

	if c.LLM.Backend == "openai" && c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "api key is required for the openai backend",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Chunker.MaxChars < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.max_chars",
			Message: "max_chars must be positive",
		})
	}

	if c.Chunker.OverlapLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap_lines",
			Message: "overlap_lines must not be negative",
		})
	}

	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.MinSimilarity < -1 || c.Retrieval.MinSimilarity > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_similarity",
			Message: "min_similarity must be within [-1, 1]",
		})
	}

	return errors
}
