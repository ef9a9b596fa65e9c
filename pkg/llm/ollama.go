package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

// OllamaGenerator answers through a local Ollama daemon.
type OllamaGenerator struct {
	config GeneratorConfig
	llm    llms.Model
}

func newOllamaGenerator(config GeneratorConfig) (*OllamaGenerator, error) {
	if config.Model == "" {
		config.Model = "llama3.2:3b"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama backend: %w", err)
	}

	return &OllamaGenerator{
		config: config,
		llm:    llm,
	}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}

	response, err := g.llm.GenerateContent(ctx, content,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generation: %w", err)
	}
	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from model %s", g.config.Model)
	}

	return response.Choices[0].Content, nil
}

func (g *OllamaGenerator) Name() string {
	return "ollama/" + g.config.Model
}
