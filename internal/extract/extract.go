package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

// Extractor turns uploaded document bytes into plain text for chunking.
// PDF and EPUB files go through MuPDF; everything else is treated as UTF-8
// text.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".epub":
		return extractPaged(data)
	default:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file %s is not valid UTF-8 text", filename)
		}
		return string(data), nil
	}
}

func extractPaged(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.Text(i)
		if err == nil && strings.TrimSpace(page) != "" {
			parts = append(parts, page)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}
