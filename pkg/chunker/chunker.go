package chunker

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/calebmt/groundwork/internal/models"
)

type ChunkerConfig struct {
	MaxChars     int
	OverlapLines int
	MinLineChars int
}

type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.MaxChars == 0 {
		config.MaxChars = 500
	}
	if config.OverlapLines == 0 {
		config.OverlapLines = 2
	}
	if config.MinLineChars == 0 {
		config.MinLineChars = 3
	}

	return Chunker{
		config: config,
	}
}

var (
	multiNewline = regexp.MustCompile(`\n{3,}`)
	multiSpace   = regexp.MustCompile(`[ \t]+`)
)

// Chunk splits a document into bounded passages. Markdown headers are
// consumed into a hierarchical section path and every emitted chunk is
// prefixed with a synthetic "[source | Section: path]" line so it stays
// self-describing out of context. Boundaries always fall on line
// boundaries and adjacent chunks share a trailing/leading line overlap.
func (c *Chunker) Chunk(doc models.Document) []models.Chunk {
	text := c.cleanText(doc.Text)
	if text == "" {
		return nil
	}

	title := strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))

	var chunks []models.Chunk
	var buffer []string
	var sections []string
	bufLen := 0
	chunkID := 0

	headerStack := make([]string, 6)

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		body := strings.Join(buffer, "\n")
		header := fmt.Sprintf("[%s | Section: %s]", doc.Filename, sections[0])
		chunkText := header + "\n" + body

		// Degenerate dedup guard: never emit two identical adjacent
		// chunks from the same source.
		if len(chunks) == 0 || chunks[len(chunks)-1].Text != chunkText {
			chunks = append(chunks, models.Chunk{
				Text:      chunkText,
				Source:    doc.Filename,
				ChunkID:   chunkID,
				Section:   sections[0],
				CharLen:   len(chunkText),
				LineCount: len(buffer),
			})
			chunkID++
		}

		// Seed the next buffer with the trailing lines for continuity.
		keep := c.config.OverlapLines
		if keep > len(buffer) {
			keep = len(buffer)
		}
		buffer = append([]string(nil), buffer[len(buffer)-keep:]...)
		sections = append([]string(nil), sections[len(sections)-keep:]...)
		bufLen = 0
		for _, l := range buffer {
			bufLen += len(l) + 1
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if heading, level, ok := parseHeader(trimmed); ok {
			headerStack[level-1] = heading
			for j := level; j < len(headerStack); j++ {
				headerStack[j] = ""
			}
			continue
		}

		if len(trimmed) < c.config.MinLineChars {
			continue
		}

		if len(buffer) > 0 && bufLen+len(trimmed)+1 > c.config.MaxChars {
			flush()
			// If the overlap seed plus this line would still overflow,
			// drop the seed so the chunk bound holds for every
			// multi-line chunk.
			if len(buffer) > 0 && bufLen+len(trimmed)+1 > c.config.MaxChars {
				buffer = buffer[:0]
				sections = sections[:0]
				bufLen = 0
			}
		}

		buffer = append(buffer, trimmed)
		sections = append(sections, sectionPath(title, headerStack))
		bufLen += len(trimmed) + 1
	}

	flush()

	return chunks
}

// ChunkAll chunks every document in order, so chunk IDs and index layout
// are reproducible across runs given the loader's sorted output.
func (c *Chunker) ChunkAll(docs []models.Document) []models.Chunk {
	var all []models.Chunk
	for _, doc := range docs {
		all = append(all, c.Chunk(doc)...)
	}
	return all
}

func (c *Chunker) cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = multiSpace.ReplaceAllString(text, " ")
	text = multiNewline.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func parseHeader(line string) (heading string, level int, ok bool) {
	if !strings.HasPrefix(line, "#") {
		return "", 0, false
	}
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 {
		return "", 0, false
	}
	heading = strings.TrimSpace(line[level:])
	if heading == "" {
		return "", 0, false
	}
	return heading, level, true
}

func sectionPath(title string, stack []string) string {
	parts := []string{title}
	for _, h := range stack {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}
