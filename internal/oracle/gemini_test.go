package oracle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// mockGenerator is a hand-written Generator for tests.
type mockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	calls               int
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	return m.GenerateContentFunc(ctx, model, contents, config)
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: s}}}},
		},
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"fenced", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"chatter", "Here you go:\n[1, 2]\nHope that helps", `[1, 2]`},
		{"object", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeminiStructurer_Structure(t *testing.T) {
	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			if model != "test-model" {
				t.Errorf("model = %q, want test-model", model)
			}
			prompt := contents[0].Parts[0].Text
			if !strings.Contains(prompt, "01/03/2024 SALE 120.00") {
				t.Errorf("prompt does not include statement text")
			}
			return textResponse("```json\n[{\"date\":\"2024-03-01\",\"amount\":120.00,\"balance\":null}, \"junk\"]\n```"), nil
		},
	}

	s := NewGeminiStructurer(gen, "test-model", zerolog.Nop())
	got, err := s.Structure(context.Background(), "01/03/2024 SALE 120.00")
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0]["date"] != "2024-03-01" {
		t.Errorf("date = %v", got[0]["date"])
	}
	if amt, ok := got[0]["amount"].(interface{ String() string }); !ok || amt.String() != "120.00" {
		t.Errorf("amount = %#v, want json.Number 120.00", got[0]["amount"])
	}
	if got[1] != nil {
		t.Errorf("non-object element = %v, want nil candidate", got[1])
	}
}

func TestGeminiStructurer_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		err  error
	}{
		{name: "transport", err: errors.New("503")},
		{name: "empty", resp: textResponse("")},
		{name: "not json", resp: textResponse("I cannot read this statement")},
		{name: "not an array", resp: textResponse(`{"transactions": []}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{
				GenerateContentFunc: func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			if _, err := NewGeminiStructurer(gen, "", zerolog.Nop()).Structure(context.Background(), "x"); err == nil {
				t.Error("Structure() error = nil, want error")
			}
		})
	}
}

func TestGeminiExtractor_SendsDocumentInline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o600); err != nil {
		t.Fatal(err)
	}

	gen := &mockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			blob := contents[0].Parts[1].InlineData
			if blob == nil || blob.MIMEType != "application/pdf" || string(blob.Data) != "%PDF-1.4 fake" {
				t.Errorf("inline data = %+v", blob)
			}
			return textResponse("  2024-03-01 SALE 120.00  "), nil
		},
	}

	text, err := NewGeminiExtractor(gen, "").ExtractText(context.Background(), path, "application/pdf")
	if err != nil {
		t.Fatalf("ExtractText() error = %v", err)
	}
	if text != "2024-03-01 SALE 120.00" {
		t.Errorf("ExtractText() = %q", text)
	}
}
