package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/calebmt/groundwork/internal/models"
	"github.com/calebmt/groundwork/internal/types"
	"github.com/calebmt/groundwork/pkg/index"
)

// ErrNoChunks is reported when a corpus yields no chunks; no index
// artifacts are written in that case.
var ErrNoChunks = errors.New("corpus produced no chunks")

// ProgressFunc receives build progress per stage ("load", "chunk",
// "embed") as done/total counts.
type ProgressFunc func(stage string, done, total int)

type BuildStats struct {
	Documents int
	Chunks    int
}

// Builder runs the build-time pipeline: load, chunk, embed, index,
// persist. An index is always built fresh from the whole corpus; it is
// never merged incrementally across runs.
type Builder struct {
	loader   types.Loader
	chunker  types.Chunker
	embedder types.Embedder
}

func NewBuilder(loader types.Loader, chunker types.Chunker, embedder types.Embedder) Builder {
	return Builder{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
	}
}

// Build indexes every document under docsDir and, when indexDir is
// non-empty, persists the artifact pair there.
func (b Builder) Build(ctx context.Context, docsDir, indexDir string, progress ProgressFunc) (*index.Index, BuildStats, error) {
	stats := BuildStats{}
	if progress == nil {
		progress = func(string, int, int) {}
	}

	docs, err := b.loader.Load(docsDir)
	if err != nil {
		return nil, stats, err
	}
	stats.Documents = len(docs)
	progress("load", len(docs), len(docs))

	var chunks []models.Chunk
	for i, doc := range docs {
		chunks = append(chunks, b.chunker.Chunk(doc)...)
		progress("chunk", i+1, len(docs))
	}
	if len(chunks) == 0 {
		return nil, stats, ErrNoChunks
	}
	stats.Chunks = len(chunks)

	texts := make([]string, len(chunks))
	meta := make([]models.ChunkMeta, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		meta[i] = models.ChunkMeta{
			Source:    ch.Source,
			ChunkID:   ch.ChunkID,
			Section:   ch.Section,
			CharLen:   ch.CharLen,
			LineCount: ch.LineCount,
		}
	}

	vectors := make([][]float32, 0, len(texts))
	const embedGroup = 32
	for start := 0; start < len(texts); start += embedGroup {
		end := start + embedGroup
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := b.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, stats, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		vectors = append(vectors, vecs...)
		progress("embed", end, len(texts))
	}

	ix, err := index.New(b.embedder.Dimension(), b.embedder.Model())
	if err != nil {
		return nil, stats, err
	}
	if err := ix.Build(vectors, texts, meta); err != nil {
		return nil, stats, fmt.Errorf("building index: %w", err)
	}

	if indexDir != "" {
		if err := ix.Save(filepath.Join(indexDir, IndexFile), filepath.Join(indexDir, MetaFile)); err != nil {
			return nil, stats, fmt.Errorf("persisting index: %w", err)
		}
	}

	return ix, stats, nil
}

// Rebuild builds a fresh index offline and swaps it in as the
// pipeline's active index only after the build fully succeeds, so
// concurrent searches never observe a partially built index.
func (p *Pipeline) Rebuild(ctx context.Context, b Builder, docsDir, indexDir string, progress ProgressFunc) (BuildStats, error) {
	ix, stats, err := b.Build(ctx, docsDir, indexDir, progress)
	if err != nil {
		return stats, err
	}
	p.swap(ix)
	return stats, nil
}
