package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/calebmt/groundwork/internal/models"
	"github.com/calebmt/groundwork/internal/types"
	"github.com/calebmt/groundwork/pkg/index"
)

// FallbackAnswer is returned whenever no context clears the similarity
// threshold. The generator is never invoked without grounding context.
const FallbackAnswer = "I don't have enough information to answer that."

// Companion artifact names inside an index mode directory.
const (
	IndexFile = "vector_store.index"
	MetaFile  = "vector_store.json"
)

// generateTimeout caps the only long-blocking call in a query: the
// generator backend. A timeout is treated like any other backend failure.
const generateTimeout = 30 * time.Second

type PipelineConfig struct {
	TopK          int
	MinSimilarity float32
	HistoryTurns  int
}

// Pipeline owns an embedder and the active index exclusively. The active
// index can be hot-swapped between corpus modes with LoadIndex; queries
// and swaps are serialized through the read-write lock.
type Pipeline struct {
	config   PipelineConfig
	embedder types.Embedder

	mu    sync.RWMutex
	index *index.Index
}

func NewWithConfig(emb types.Embedder, config PipelineConfig) *Pipeline {
	if config.TopK == 0 {
		config.TopK = 3
	}
	if config.MinSimilarity == 0 {
		config.MinSimilarity = 0.3
	}
	if config.HistoryTurns == 0 {
		config.HistoryTurns = 2
	}

	return &Pipeline{
		config:   config,
		embedder: emb,
	}
}

// LoadIndex loads the artifact pair under dir and makes it the active
// index. The persisted embedding model and dimension must match the
// active embedder; a mismatch would silently produce meaningless
// similarity scores, so it fails loudly instead. The previous index
// stays active on any failure.
func (p *Pipeline) LoadIndex(dir string) error {
	ix, err := index.Load(filepath.Join(dir, IndexFile), filepath.Join(dir, MetaFile))
	if err != nil {
		return fmt.Errorf("loading index from %s: %w", dir, err)
	}

	if ix.Model() != p.embedder.Model() {
		return fmt.Errorf("index was built with embedding model %q but the active model is %q; rebuild the index",
			ix.Model(), p.embedder.Model())
	}
	if ix.Dimension() != p.embedder.Dimension() {
		return fmt.Errorf("index dimension %d does not match embedder dimension %d",
			ix.Dimension(), p.embedder.Dimension())
	}

	p.swap(ix)
	return nil
}

// swap atomically replaces the active index reference.
func (p *Pipeline) swap(ix *index.Index) {
	p.mu.Lock()
	p.index = ix
	p.mu.Unlock()
}

func (p *Pipeline) active() *index.Index {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index
}

// Ready reports whether an index is loaded.
func (p *Pipeline) Ready() bool {
	return p.active() != nil
}

// Retrieve embeds the query and returns the top-k chunks above the
// similarity floor. No loaded index yields an empty result, not an
// error.
func (p *Pipeline) Retrieve(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	ix := p.active()
	if ix == nil {
		return nil, nil
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return ix.Search(vec, k, p.config.MinSimilarity)
}

// Run answers a query from the active index. The caller always gets a
// displayable answer: retrieval and generation failures are converted to
// descriptive answer strings, never propagated as faults. Sources is
// empty exactly when no chunk cleared the threshold or no index is
// loaded.
func (p *Pipeline) Run(ctx context.Context, query string, history []models.ChatTurn, gen types.Generator) models.Answer {
	results, err := p.Retrieve(ctx, query, p.config.TopK)
	if err != nil {
		log.Printf("retrieval failed: %v", err)
		return models.Answer{
			Answer:  fmt.Sprintf("Sorry, I could not search the document index: %v", err),
			Sources: []models.Source{},
		}
	}

	if len(results) == 0 {
		return models.Answer{
			Answer:  FallbackAnswer,
			Sources: []models.Source{},
		}
	}

	system, prompt := buildPrompt(query, results, history, p.config.HistoryTurns)

	gctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	answer, err := gen.Generate(gctx, system, prompt)
	if err != nil {
		log.Printf("generator %s failed: %v", gen.Name(), err)
		answer = fmt.Sprintf("Sorry, the answer backend (%s) is unavailable: %v. The retrieved passages are listed under sources.",
			gen.Name(), err)
	}

	return models.Answer{
		Answer:  answer,
		Sources: toSources(results),
	}
}

func toSources(results []models.SearchResult) []models.Source {
	sources := make([]models.Source, len(results))
	for i, r := range results {
		sources[i] = models.Source{
			Text:   r.Text,
			Source: r.Meta.Source,
			Score:  r.Score,
		}
	}
	return sources
}
