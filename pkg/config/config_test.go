package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "embedding:\n  model: all-minilm\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "llama3.2:3b", cfg.LLM.Model)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 500, cfg.Chunker.MaxChars)
	assert.Equal(t, 2, cfg.Chunker.OverlapLines)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, float32(0.3), cfg.Retrieval.MinSimilarity)
	assert.Equal(t, 2, cfg.Retrieval.HistoryTurns)
	assert.Equal(t, "index", cfg.Index.Dir)
	assert.Equal(t, "assignment", cfg.Index.Mode)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
embedding:
  model: nomic-embed-text
  batch_size: 4
llm:
  backend: openai
  model: gpt-4o-mini
  api_key: test-key
retrieval:
  top_k: 5
  min_similarity: 0.45
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 4, cfg.Embedding.BatchSize)
	assert.Equal(t, "openai", cfg.LLM.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, float32(0.45), cfg.Retrieval.MinSimilarity)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://ollama.internal:11434")
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	path := writeConfig(t, "llm:\n  backend: ollama\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ollama.internal:11434", cfg.Embedding.BaseURL)
	assert.Equal(t, "http://ollama.internal:11434", cfg.LLM.BaseURL)
	assert.Equal(t, "sk-from-env", cfg.LLM.APIKey)
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "embedding: [not a mapping")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "valid defaults",
			mutate: func(*Config) {},
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.LLM.Backend = "anthropic" },
			field:  "llm.backend",
		},
		{
			name:   "openai without key",
			mutate: func(c *Config) { c.LLM.Backend = "openai" },
			field:  "llm.api_key",
		},
		{
			name:   "zero batch size",
			mutate: func(c *Config) { c.Embedding.BatchSize = -1 },
			field:  "embedding.batch_size",
		},
		{
			name:   "negative rate limit",
			mutate: func(c *Config) { c.Embedding.RateLimit = -1 },
			field:  "embedding.rate_limit",
		},
		{
			name:   "max tokens too large",
			mutate: func(c *Config) { c.LLM.MaxTokens = 10000 },
			field:  "llm.max_tokens",
		},
		{
			name:   "temperature out of range",
			mutate: func(c *Config) { c.LLM.Temperature = 3.5 },
			field:  "llm.temperature",
		},
		{
			name:   "similarity out of range",
			mutate: func(c *Config) { c.Retrieval.MinSimilarity = 1.5 },
			field:  "retrieval.min_similarity",
		},
		{
			name:   "negative top_k",
			mutate: func(c *Config) { c.Retrieval.TopK = -2 },
			field:  "retrieval.top_k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			errs := cfg.Validate()
			if tt.field == "" {
				assert.Empty(t, errs)
				return
			}

			require.NotEmpty(t, errs)
			fields := make([]string, len(errs))
			for i, e := range errs {
				fields[i] = e.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}
