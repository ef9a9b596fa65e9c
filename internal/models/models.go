package models

// Document is the raw text of a single source file, as extracted by the
// loader. Documents exist only while an index is being built.
type Document struct {
	Filename  string
	Text      string
	Extension string
	CharLen   int
}

// Chunk is a bounded contiguous passage of a document, the unit of
// retrieval. ChunkID is unique within a source document.
type Chunk struct {
	Text      string
	Source    string
	ChunkID   int
	Section   string
	CharLen   int
	LineCount int
}

// ChunkMeta is the per-chunk metadata persisted alongside the index.
type ChunkMeta struct {
	Source    string `json:"source"`
	ChunkID   int    `json:"chunk_id"`
	Section   string `json:"section,omitempty"`
	CharLen   int    `json:"char_length"`
	LineCount int    `json:"line_count"`
}

// SearchResult is a single retrieval hit, produced fresh per query.
type SearchResult struct {
	Text  string
	Meta  ChunkMeta
	Score float32
}

// Source attributes part of an answer to a retrieved chunk.
type Source struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}

// Answer is what the pipeline returns to its caller. Answer is always a
// displayable string; Sources is empty exactly when no chunk cleared the
// similarity threshold.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// ChatTurn is one prior exchange, carried for conversational continuity.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
