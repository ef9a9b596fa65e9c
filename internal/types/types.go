package types

import (
	"context"

	"github.com/calebmt/groundwork/internal/models"
)

// Core interfaces
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Generator produces a natural-language answer from an assembled prompt.
// Implementations wrap a local inference daemon or a hosted chat API; the
// pipeline treats them interchangeably.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Name() string
}

type Loader interface {
	Load(dir string) ([]models.Document, error)
}

type Chunker interface {
	Chunk(doc models.Document) []models.Chunk
}
