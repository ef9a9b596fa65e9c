package index

import (
	"fmt"
	"sort"

	"github.com/calebmt/groundwork/internal/models"
	"github.com/calebmt/groundwork/pkg/embedder"
)

// Index is a flat vector index over (vector, text, metadata) tuples.
// Vectors are stored unit-normalized, so similarity search is a plain
// inner product scan. The three slices are always the same length.
type Index struct {
	dim     int
	model   string
	vectors [][]float32
	texts   []string
	meta    []models.ChunkMeta
}

// New creates an empty index with a fixed dimension. Every added vector
// must match the dimension exactly.
func New(dim int, model string) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dim)
	}
	return &Index{dim: dim, model: model}, nil
}

func (ix *Index) Len() int {
	return len(ix.vectors)
}

func (ix *Index) Dimension() int {
	return ix.dim
}

// Model is the embedding model identity recorded at build time.
func (ix *Index) Model() string {
	return ix.model
}

// Build bulk-loads the index, replacing any existing contents.
func (ix *Index) Build(vectors [][]float32, texts []string, meta []models.ChunkMeta) error {
	ix.vectors = nil
	ix.texts = nil
	ix.meta = nil
	return ix.Add(vectors, texts, meta)
}

// Add appends entries; their positions are contiguous with existing
// ones. Counts and dimensions are validated before anything is stored.
func (ix *Index) Add(vectors [][]float32, texts []string, meta []models.ChunkMeta) error {
	if len(vectors) != len(texts) || len(vectors) != len(meta) {
		return fmt.Errorf("count mismatch: %d vectors, %d texts, %d metadata entries",
			len(vectors), len(texts), len(meta))
	}
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), ix.dim)
		}
	}

	for i, v := range vectors {
		stored := append([]float32(nil), v...)
		embedder.Normalize(stored)
		ix.vectors = append(ix.vectors, stored)
		ix.texts = append(ix.texts, texts[i])
		ix.meta = append(ix.meta, meta[i])
	}
	return nil
}

// Search returns up to k entries by descending cosine similarity,
// excluding anything below minSimilarity. An empty index yields an empty
// result, not an error. Equal scores keep storage order.
func (ix *Index) Search(query []float32, k int, minSimilarity float32) ([]models.SearchResult, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}

	q := append([]float32(nil), query...)
	embedder.Normalize(q)

	results := make([]models.SearchResult, 0, len(ix.vectors))
	for i, v := range ix.vectors {
		score := dot(q, v)
		if score < minSimilarity {
			continue
		}
		results = append(results, models.SearchResult{
			Text:  ix.texts[i],
			Meta:  ix.meta[i],
			Score: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
