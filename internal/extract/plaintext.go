package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// PlainTextExtractor handles prose formats: plain text, markdown,
// restructured text, org files, and common config formats that read as
// prose. Content is decoded as UTF-8, falling back to Latin-1.
type PlainTextExtractor struct{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Types() []string {
	return []string{"txt", "text", "md", "markdown", "rst", "org", "log", "csv"}
}

func (e *PlainTextExtractor) Extract(path string, content []byte) (*Result, error) {
	text, encoding, err := decodeText(content)
	if err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	return &Result{
		Text: text,
		Metadata: map[string]string{
			"size":     fmt.Sprintf("%d", len(content)),
			"lines":    fmt.Sprintf("%d", countLines(text)),
			"encoding": encoding,
		},
	}, nil
}

// decodeText decodes bytes as UTF-8, then Latin-1. Null bytes mean the
// content is binary, not text in any encoding.
func decodeText(content []byte) (text, encoding string, err error) {
	if bytes.IndexByte(content, 0) >= 0 {
		return "", "", errors.New("content appears to be binary")
	}

	if utf8.Valid(content) {
		return string(content), "utf-8", nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return "", "", fmt.Errorf("decoding as latin-1: %w", err)
	}
	return string(decoded), "latin-1", nil
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
