package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		BaseURL   string  `yaml:"base_url"`
		Model     string  `yaml:"model"`
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	LLM struct {
		Backend     string  `yaml:"backend"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Chunker struct {
		MaxChars     int `yaml:"max_chars"`
		OverlapLines int `yaml:"overlap_lines"`
		MinLineChars int `yaml:"min_line_chars"`
	} `yaml:"chunker"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
		// MinSimilarity is the cosine similarity floor for retrieved
		// chunks. 0.3 is the documented default; results below it are
		// never surfaced.
		MinSimilarity float32 `yaml:"min_similarity"`
		HistoryTurns  int     `yaml:"history_turns"`
	} `yaml:"retrieval"`

	Index struct {
		Dir  string `yaml:"dir"`
		Mode string `yaml:"mode"`
	} `yaml:"index"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/groundwork/config.yaml"),
			"/etc/groundwork/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "all-minilm"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 16
	}

	if config.LLM.Backend == "" {
		config.LLM.Backend = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3.2:3b"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}

	if config.Chunker.MaxChars == 0 {
		config.Chunker.MaxChars = 500
	}
	if config.Chunker.OverlapLines == 0 {
		config.Chunker.OverlapLines = 2
	}
	if config.Chunker.MinLineChars == 0 {
		config.Chunker.MinLineChars = 3
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}
	if config.Retrieval.MinSimilarity == 0 {
		config.Retrieval.MinSimilarity = 0.3
	}
	if config.Retrieval.HistoryTurns == 0 {
		config.Retrieval.HistoryTurns = 2
	}

	if config.Index.Dir == "" {
		config.Index.Dir = "index"
	}
	if config.Index.Mode == "" {
		config.Index.Mode = "assignment"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		if config.LLM.Backend == "" || config.LLM.Backend == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && config.LLM.Backend == "openai" {
		config.LLM.BaseURL = baseURL
	}
}
