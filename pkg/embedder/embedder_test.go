package embedder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns a deterministic vector per text and records the
// batch sizes it was called with.
type fakeClient struct {
	dim     int
	batches []int
	err     error
}

func (f *fakeClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, len(texts))

	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dim)
		for j := range v {
			v[j] = float32(len(text)+j) + 1
		}
		out[i] = v
	}
	return out, nil
}

func newTestEmbedder(t *testing.T, client embeddingClient, config EmbedderConfig) *Embedder {
	t.Helper()
	if config.Model == "" {
		config.Model = "all-minilm"
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}
	e, err := newWithClient(context.Background(), config, client)
	require.NoError(t, err)
	return e
}

func TestNewWithClient_ProbeLearnsDimension(t *testing.T) {
	e := newTestEmbedder(t, &fakeClient{dim: 8}, EmbedderConfig{})

	assert.Equal(t, 8, e.Dimension())
	assert.Equal(t, "all-minilm", e.Model())
}

func TestNewWithClient_UnavailableModelFails(t *testing.T) {
	client := &fakeClient{dim: 8, err: errors.New("connection refused")}
	_, err := newWithClient(context.Background(), EmbedderConfig{Model: "all-minilm", BatchSize: 16}, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
}

func TestEmbed_ReturnsUnitVector(t *testing.T) {
	e := newTestEmbedder(t, &fakeClient{dim: 4}, EmbedderConfig{})

	v, err := e.Embed(context.Background(), "the premier package")
	require.NoError(t, err)
	require.Len(t, v, 4)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedBatch_SubBatches(t *testing.T) {
	client := &fakeClient{dim: 4}
	e := newTestEmbedder(t, client, EmbedderConfig{BatchSize: 3})
	client.batches = nil // discard the probe call

	texts := make([]string, 8)
	for i := range texts {
		texts[i] = fmt.Sprintf("passage number %d", i)
	}

	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, 8)
	assert.Equal(t, []int{3, 3, 2}, client.batches)
}

func TestEmbedBatch_OrderMatchesSingles(t *testing.T) {
	e := newTestEmbedder(t, &fakeClient{dim: 4}, EmbedderConfig{BatchSize: 2})

	texts := []string{"a short one", "a somewhat longer passage", "mid length text"}
	batched, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batched, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batched[i], "vector %d differs between batch and single", i)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	e := newTestEmbedder(t, &fakeClient{dim: 4}, EmbedderConfig{})

	vecs, err := e.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, vecs)
}

// shrinkingClient changes its output dimension after the first call.
type shrinkingClient struct {
	calls int
}

func (s *shrinkingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	dim := 8
	if s.calls > 1 {
		dim = 4
	}
	out := make([][]float32, len(texts))
	for i := range out {
		v := make([]float32, dim)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

func TestEmbedBatch_DimensionDriftFails(t *testing.T) {
	e := newTestEmbedder(t, &shrinkingClient{}, EmbedderConfig{})

	_, err := e.EmbedBatch(context.Background(), []string{"after the drift"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension changed")
}

// miscountingClient returns one vector regardless of batch size.
type miscountingClient struct{}

func (miscountingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 0}}, nil
}

func TestEmbedBatch_ResultCountMismatchFails(t *testing.T) {
	e := newTestEmbedder(t, miscountingClient{}, EmbedderConfig{})

	_, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0, 0}, zero)
}
