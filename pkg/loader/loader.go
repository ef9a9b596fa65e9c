package loader

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/calebmt/groundwork/internal/models"
)

// Loader reads every supported document under a directory into plain
// text. A single unreadable or empty file is skipped with a warning; the
// load fails only when no file yields usable text.
type Loader struct{}

func New() Loader {
	return Loader{}
}

var supportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

func (l Loader) Load(dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading document directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	// Sorted by filename so chunk IDs and index layout are reproducible.
	sort.Strings(names)

	var docs []models.Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		ext := strings.ToLower(filepath.Ext(name))

		text, err := extract(path, ext)
		if err != nil {
			log.Printf("warning: skipping %s: %v", name, err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			log.Printf("warning: skipping %s: no text extracted", name)
			continue
		}

		docs = append(docs, models.Document{
			Filename:  name,
			Text:      text,
			Extension: ext,
			CharLen:   len(text),
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable documents in %s", dir)
	}

	return docs, nil
}

func extract(path, ext string) (string, error) {
	switch ext {
	case ".txt", ".md", ".markdown":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".html", ".htm":
		return extractHTML(path)
	case ".pdf":
		return extractPDF(path)
	case ".docx":
		return extractDocx(path)
	}
	return "", fmt.Errorf("unsupported extension %s", ext)
}

func extractHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()
	return doc.Text(), nil
}

func extractPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	body, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
