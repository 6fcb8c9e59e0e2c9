package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// PlainTextExtractor reads text documents as-is.
type PlainTextExtractor struct{}

// ExtractText implements TextExtractor.
func (PlainTextExtractor) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ExtractText: reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("ExtractText: document is not valid UTF-8 text")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("ExtractText: document is empty")
	}
	return text, nil
}

// RoutingExtractor sends text/* and CSV documents to Text and everything
// else to Binary. A nil Binary rejects non-text documents.
type RoutingExtractor struct {
	Text   TextExtractor
	Binary TextExtractor
}

// ExtractText implements TextExtractor.
func (r RoutingExtractor) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	if IsTextContent(contentType) {
		return r.Text.ExtractText(ctx, path, contentType)
	}
	if r.Binary == nil {
		return "", fmt.Errorf("ExtractText: unsupported document type %q", contentType)
	}
	return r.Binary.ExtractText(ctx, path, contentType)
}

// IsTextContent reports whether contentType names a plain text document.
func IsTextContent(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i != -1 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "text/") || ct == "application/csv"
}

var (
	_ TextExtractor = PlainTextExtractor{}
	_ TextExtractor = RoutingExtractor{}
)
