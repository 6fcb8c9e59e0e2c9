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

	"github.com/dvloznov/creditscore/internal/app"
	"github.com/dvloznov/creditscore/internal/businesses"
	"github.com/dvloznov/creditscore/internal/config"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/dvloznov/creditscore/internal/scores"
	"github.com/dvloznov/creditscore/internal/statement"
	"github.com/rs/zerolog"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	commands := map[string]func(context.Context, *app.App, []string) error{
		"create-business": runCreateBusiness,
		"upload":          runUpload,
		"ingest":          runIngest,
		"score":           runScore,
		"audit":           runAudit,
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage()
		return
	}
	run, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	application, err := open(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if err := run(ctx, application, os.Args[2:]); err != nil {
		log.Error().Err(err).Str("command", name).Msg("Command failed")
		application.Close()
		os.Exit(1)
	}
}

func open(ctx context.Context, log zerolog.Logger) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Backend == "memory" {
		log.Warn().Msg("STORE_BACKEND is memory; nothing written by this command will persist")
	}
	return app.New(ctx, cfg, log)
}

func printUsage() {
	fmt.Println("Credit Score CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  create-business  Register a business")
	fmt.Println("  upload           Upload a CSV, JSON or XLSX transaction file")
	fmt.Println("  ingest           Ingest a bank statement document")
	fmt.Println("  score            Compute or read a business credit score")
	fmt.Println("  audit            Print the score audit trail of a business")
	fmt.Println("  help             Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runCreateBusiness(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("create-business", flag.ExitOnError)
	req := businesses.CreateRequest{}
	fs.StringVar(&req.ID, "id", "", "Business ID (generated when empty)")
	fs.StringVar(&req.Name, "name", "", "Legal name")
	fs.StringVar(&req.RegistrationNumber, "registration-number", "", "Company registration number")
	fs.StringVar(&req.Industry, "industry", "", "Industry")
	fs.StringVar(&req.Country, "country", "", "Country")
	fs.StringVar(&req.City, "city", "", "City")
	fs.Parse(args)

	biz, err := a.Businesses.Create(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(biz)
}

func runUpload(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID")
	filePath := fs.String("file", "", "Path to a .csv, .json or .xlsx file")
	fs.Parse(args)

	if *businessID == "" || *filePath == "" {
		return fmt.Errorf("usage: cli upload -business ID -file PATH")
	}

	f, err := os.Open(*filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	filename := filepath.Base(*filePath)
	res, err := a.Uploads.UploadFile(ctx, *businessID, filename, mime.TypeByExtension(filepath.Ext(filename)), f)
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"created": res.Created})
}

func runIngest(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID")
	filePath := fs.String("file", "", "Path to a statement PDF or text file")
	fs.Parse(args)

	if *businessID == "" || *filePath == "" {
		return fmt.Errorf("usage: cli ingest -business ID -file PATH")
	}

	doc, err := os.ReadFile(*filePath)
	if err != nil {
		return err
	}

	filename := filepath.Base(*filePath)
	res, err := a.Statements.Ingest(ctx, statement.Request{
		BusinessID:  *businessID,
		Filename:    filename,
		ContentType: mime.TypeByExtension(filepath.Ext(filename)),
		Document:    doc,
	})
	if err != nil {
		return err
	}
	return printJSON(res)
}

func runScore(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID")
	refresh := fs.Bool("refresh", false, "Recompute instead of reading the cached score")
	requestedBy := fs.String("requested-by", "cli", "Principal recorded on the audit entry")
	fs.Parse(args)

	if *businessID == "" {
		return fmt.Errorf("usage: cli score -business ID [-refresh]")
	}

	score, err := a.Scores.GetScore(ctx, scores.Request{
		BusinessID:  *businessID,
		Refresh:     *refresh,
		RequestedBy: *requestedBy,
	})
	if err != nil {
		return err
	}
	return printJSON(score)
}

func runAudit(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	businessID := fs.String("business", "", "Business ID")
	fs.Parse(args)

	if *businessID == "" {
		return fmt.Errorf("usage: cli audit -business ID")
	}

	entries, err := a.Scores.AuditTrail(ctx, *businessID)
	if err != nil {
		return err
	}
	return printJSON(entries)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
