package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator answers through a hosted OpenAI-compatible chat
// completion endpoint.
type OpenAIGenerator struct {
	config GeneratorConfig
	client *openai.Client
}

func newOpenAIGenerator(config GeneratorConfig) (*OpenAIGenerator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai backend requires an API key")
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIGenerator{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	response, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.config.Model,
		Temperature: float32(g.config.Temperature),
		MaxTokens:   g.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai generation: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from model %s", g.config.Model)
	}

	return response.Choices[0].Message.Content, nil
}

func (g *OpenAIGenerator) Name() string {
	return "openai/" + g.config.Model
}
