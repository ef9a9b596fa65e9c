package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/calebmt/groundwork/pkg/chunker"
	"github.com/calebmt/groundwork/pkg/embedder"
	"github.com/calebmt/groundwork/pkg/loader"
	"github.com/calebmt/groundwork/pkg/pipeline"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 4)
	v[len(text)%4] = 1
	return v, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, _ := s.Embed(ctx, text)
		embedder.Normalize(v)
		out[i] = v
	}
	return out, nil
}

func (stubEmbedder) Dimension() int { return 4 }
func (stubEmbedder) Model() string  { return "stub" }

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return "a generated answer", nil
}

func (stubGenerator) Name() string { return "stub/stub" }

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	pipe := pipeline.NewWithConfig(stubEmbedder{}, pipeline.PipelineConfig{})
	ck := chunker.NewWithConfig(chunker.ChunkerConfig{})
	builder := pipeline.NewBuilder(loader.New(), &ck, stubEmbedder{})

	s := New(pipe, stubGenerator{}, builder, Config{CustomIndexDir: t.TempDir()})
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocket_QueryWithoutIndex(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "query", Content: "anything at all"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "response", reply.Type)
	assert.Equal(t, pipeline.FallbackAnswer, reply.Content)
}

func TestWebSocket_EmptyQuery(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "query"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
}

func TestWebSocket_UnknownType(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "shutdown"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Content, "unknown message type")
}

func TestWebSocket_RebuildMissingDir(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	require.NoError(t, conn.WriteJSON(Message{Type: "rebuild"}))

	var reply Message
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
}
