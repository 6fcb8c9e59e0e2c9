// Package oracle turns unstructured bank statement documents into candidate
// transaction rows using an external language model. Nothing it returns is
// trusted: callers coerce and filter every candidate.
package oracle

import (
	"context"
	"errors"

	"github.com/dvloznov/creditscore/internal/apperr"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// Candidate is one untyped row proposed by the model. Keys that may be
// present are date, amount, balance, description, transaction_type, channel
// and counterparty; any of them may be missing or malformed.
type Candidate map[string]any

// Structurer converts extracted statement text into candidate rows.
type Structurer interface {
	Structure(ctx context.Context, text string) ([]Candidate, error)
}

// TextExtractor reads the document stored at path and returns its text.
type TextExtractor interface {
	ExtractText(ctx context.Context, path, contentType string) (string, error)
}

// Generator is the subset of the genai client the oracle calls.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGenAIClient creates a Gemini client. An empty apiKey falls back to the
// GOOGLE_API_KEY environment variable read by the SDK.
func NewGenAIClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
}

// ErrUnavailable is returned by Disabled. No retry can succeed.
var ErrUnavailable = errors.New("oracle disabled")

// Disabled is the Structurer used when no model client is configured.
// Every call fails as an upstream error.
type Disabled struct {
	Reason string
}

// Structure implements Structurer.
func (d Disabled) Structure(ctx context.Context, text string) ([]Candidate, error) {
	return nil, apperr.Wrap(apperr.KindUpstream, "oracle.Structure", "statement structuring is unavailable: "+d.Reason, ErrUnavailable)
}
