package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/creditscore/internal/config"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/dvloznov/creditscore/internal/statement"
)

// parse-statement runs a local statement through the model and prints the
// rows that ingestion would accept, without storing anything.
func main() {
	filePath := flag.String("file", "", "Path to a statement PDF or text file")
	flag.Parse()

	log := logger.New()

	if *filePath == "" {
		log.Fatal().Msg("Usage: parse-statement -file PATH")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	doc, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *filePath).Msg("Failed to read statement")
	}

	client, err := oracle.NewGenAIClient(ctx, cfg.Oracle.APIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create genai client")
	}

	extractor := oracle.RoutingExtractor{
		Text:   oracle.PlainTextExtractor{},
		Binary: oracle.NewBoundedExtractor(oracle.NewGeminiExtractor(client.Models, cfg.Oracle.Model), cfg.Oracle.Timeout),
	}
	structurer := oracle.NewRetryingStructurer(
		oracle.NewGeminiStructurer(client.Models, cfg.Oracle.Model, log),
		oracle.RetryPolicy{
			Timeout:        cfg.Oracle.Timeout,
			MaxAttempts:    cfg.Oracle.MaxAttempts,
			InitialBackoff: cfg.Oracle.InitialBackoff,
			Budget:         cfg.Oracle.Budget,
		},
		log,
	)

	filename := filepath.Base(*filePath)
	state, err := statement.Preview(ctx, extractor, structurer, log, filename, mime.TypeByExtension(filepath.Ext(filename)), doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Parsing failed")
	}

	out := map[string]any{
		"start_date":        state.Statement.StartDate.Format(time.DateOnly),
		"end_date":          state.Statement.EndDate.Format(time.DateOnly),
		"total_income":      state.Statement.TotalIncome,
		"total_expenditure": state.Statement.TotalExpenditure,
		"rows":              state.Rows,
		"rejected":          state.Rejected,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
	fmt.Fprintf(os.Stderr, "%d row(s) accepted, %d dropped\n", len(state.Rows), len(state.Rejected))
}
