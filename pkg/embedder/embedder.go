package embedder

import (
	"context"
	"fmt"
	"math"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

type EmbedderConfig struct {
	Model   string
	BaseURL string // Ollama server URL
	// BatchSize bounds how many texts go to the model per request.
	BatchSize int
	// RateLimit caps embedding requests per second. Zero disables it.
	RateLimit float64
}

type embeddingClient interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Embedder maps passages and queries into the shared embedding space.
// Every vector it returns is unit-normalized, so inner product equals
// cosine similarity downstream.
type Embedder struct {
	config  EmbedderConfig
	client  embeddingClient
	limiter *rate.Limiter
	dim     int
}

// NewWithConfig connects to the embedding model and probes it once to
// learn the vector dimension. A model that cannot be reached is a fatal
// startup error; there is no degraded mode.
func NewWithConfig(ctx context.Context, config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "all-minilm"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return newWithClient(ctx, config, client)
}

func newWithClient(ctx context.Context, config EmbedderConfig, client embeddingClient) (*Embedder, error) {
	e := &Embedder{
		config: config,
		client: client,
	}
	if config.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	probe, err := e.EmbedBatch(ctx, []string{"ping"})
	if err != nil {
		return nil, fmt.Errorf("embedding model %q unavailable: %w", config.Model, err)
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		return nil, fmt.Errorf("embedding model %q returned an empty vector", config.Model)
	}

	return e, nil
}

// Embed returns the normalized vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in fixed-size sub-batches. Output order and
// values match embedding the texts one by one.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vecs, err := e.client.CreateEmbedding(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embedding batch of %d texts: %w", len(batch), err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding result size mismatch: got %d vectors for %d texts", len(vecs), len(batch))
		}

		for _, v := range vecs {
			if e.dim == 0 {
				e.dim = len(v)
			} else if len(v) != e.dim {
				return nil, fmt.Errorf("embedding dimension changed from %d to %d", e.dim, len(v))
			}
			Normalize(v)
			out = append(out, v)
		}
	}

	return out, nil
}

// Dimension reports the vector dimension learned from the model probe.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Model reports the embedding model identity, persisted alongside the
// index so query-time and build-time embedding spaces can be matched.
func (e *Embedder) Model() string {
	return e.config.Model
}

// Normalize scales v to unit L2 length in place. Zero vectors are left
// untouched.
func Normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
