package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GeminiStructurer asks a Gemini model to structure statement text.
type GeminiStructurer struct {
	gen   Generator
	model string
	log   zerolog.Logger
}

// NewGeminiStructurer creates a structurer. An empty model uses DefaultModelName.
func NewGeminiStructurer(gen Generator, model string, log zerolog.Logger) *GeminiStructurer {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiStructurer{gen: gen, model: model, log: log}
}

// Structure sends text to the model and decodes its JSON array reply.
func (s *GeminiStructurer) Structure(ctx context.Context, text string) ([]Candidate, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: structurePrompt + text}},
		},
	}

	resp, err := s.gen.GenerateContent(ctx, s.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("Structure: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("Structure: empty response from model")
	}

	candidates, err := decodeCandidates(cleanModelJSON(rawText))
	if err != nil {
		s.log.Debug().Str("raw_response", truncate(rawText, 2000)).Msg("Unparseable model response")
		return nil, fmt.Errorf("Structure: %w", err)
	}

	s.log.Debug().Int("candidates", len(candidates)).Str("model", s.model).Msg("Statement structured")
	return candidates, nil
}

// decodeCandidates parses a JSON array. Elements that are not objects become
// empty candidates so their index is preserved for rejection reporting.
func decodeCandidates(clean string) ([]Candidate, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}

	items, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("model output is %T, want a JSON array", parsed)
	}

	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		out = append(out, Candidate(obj))
	}
	return out, nil
}

// cleanModelJSON removes Markdown fences and any text around the outermost
// JSON array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// GeminiExtractor transcribes binary documents (PDFs, images) to text by
// sending them inline to a Gemini model.
type GeminiExtractor struct {
	gen   Generator
	model string
}

// NewGeminiExtractor creates an extractor. An empty model uses DefaultModelName.
func NewGeminiExtractor(gen Generator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{gen: gen, model: model}
}

// ExtractText implements TextExtractor.
func (e *GeminiExtractor) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ExtractText: reading %s: %w", path, err)
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: contentType,
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := e.gen.GenerateContent(ctx, e.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("ExtractText: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("ExtractText: no text found in document")
	}
	return text, nil
}

var (
	_ Structurer    = (*GeminiStructurer)(nil)
	_ TextExtractor = (*GeminiExtractor)(nil)
)
