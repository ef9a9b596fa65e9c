package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/calebmt/groundwork/internal/models"
	"github.com/calebmt/groundwork/internal/types"
	"github.com/calebmt/groundwork/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// Server is a thin collaborator in front of the pipeline: it renders
// nothing itself beyond the wire messages and keeps per-connection chat
// history.
type Server struct {
	pipeline  *pipeline.Pipeline
	generator types.Generator
	builder   pipeline.Builder
	customDir string
}

type Config struct {
	// CustomIndexDir is where a rebuilt custom-corpus index is
	// persisted before being swapped in.
	CustomIndexDir string
}

func New(p *pipeline.Pipeline, gen types.Generator, b pipeline.Builder, config Config) *Server {
	if config.CustomIndexDir == "" {
		config.CustomIndexDir = "index/custom"
	}
	return &Server{
		pipeline:  p,
		generator: gen,
		builder:   b,
		customDir: config.CustomIndexDir,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	var history []models.ChatTurn

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", "invalid message", nil)
			continue
		}

		switch msg.Type {
		case "query":
			history = s.handleQuery(r.Context(), conn, msg.Content, history)
		case "rebuild":
			s.handleRebuild(r.Context(), conn, msg.Content)
		default:
			s.sendMessage(conn, "error", "unknown message type "+msg.Type, nil)
		}
	}
}

func (s *Server) handleQuery(ctx context.Context, conn *websocket.Conn, query string, history []models.ChatTurn) []models.ChatTurn {
	if query == "" {
		s.sendMessage(conn, "error", "empty query", nil)
		return history
	}

	answer := s.pipeline.Run(ctx, query, history, s.generator)
	s.sendMessage(conn, "response", answer.Answer, answer.Sources)

	return append(history,
		models.ChatTurn{Role: "user", Content: query},
		models.ChatTurn{Role: "assistant", Content: answer.Answer},
	)
}

// handleRebuild indexes an uploaded custom corpus directory. The new
// index is built and persisted fully before the active reference is
// swapped, so in-flight queries keep working against the old one.
func (s *Server) handleRebuild(ctx context.Context, conn *websocket.Conn, docsDir string) {
	if docsDir == "" {
		s.sendMessage(conn, "error", "rebuild needs a document directory", nil)
		return
	}

	s.sendMessage(conn, "status", "rebuilding index from "+docsDir, nil)
	stats, err := s.pipeline.Rebuild(ctx, s.builder, docsDir, s.customDir, nil)
	if err != nil {
		s.sendMessage(conn, "error", "rebuild failed: "+err.Error(), nil)
		return
	}
	s.sendMessage(conn, "status",
		fmt.Sprintf("indexed %d documents into %d chunks", stats.Documents, stats.Chunks), nil)
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string, data interface{}) {
	msg := Message{
		Type:    msgType,
		Content: content,
		Data:    data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
