package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/creditscore/internal/config"
	infrabq "github.com/dvloznov/creditscore/internal/infra/bigquery"
	"github.com/dvloznov/creditscore/internal/infra/postgres"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/rs/zerolog"
)

var (
	backend       = flag.String("backend", "", "Store to migrate: postgres or bigquery (defaults to STORE_BACKEND)")
	projectID     = flag.String("project", "", "GCP project ID (defaults to BQ_PROJECT_ID)")
	datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to BQ_DATASET_ID)")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to BigQuery migrations directory")
)

func main() {
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	target := *backend
	if target == "" {
		target = cfg.Store.Backend
	}

	ctx := context.Background()
	switch target {
	case "postgres":
		err = migratePostgres(cfg.Store.Postgres, log)
	case "bigquery":
		bq := cfg.Store.BigQuery
		if *projectID != "" {
			bq.ProjectID = *projectID
		}
		if *datasetID != "" {
			bq.DatasetID = *datasetID
		}
		err = migrateBigQuery(ctx, bq, log)
	default:
		err = fmt.Errorf("backend %q has no migrations; use -backend postgres or -backend bigquery", target)
	}
	if err != nil {
		log.Error().Err(err).Str("backend", target).Msg("Migration failed")
		os.Exit(1)
	}
}

func migratePostgres(cfg config.PostgresConfig, log zerolog.Logger) error {
	db, err := postgres.Open(cfg, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := postgres.AutoMigrate(db); err != nil {
		return err
	}
	log.Info().Str("database", cfg.DBName).Msg("PostgreSQL schema is up to date")
	return nil
}

func migrateBigQuery(ctx context.Context, cfg config.BigQueryConfig, log zerolog.Logger) error {
	if cfg.ProjectID == "" {
		return fmt.Errorf("-project or BQ_PROJECT_ID is required")
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	defer client.Close()

	log.Info().Str("project", cfg.ProjectID).Str("dataset", cfg.DatasetID).Msg("Connected to BigQuery")

	migrations, err := infrabq.ReadMigrations(*migrationsDir, cfg.ProjectID, cfg.DatasetID, log)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := infrabq.NewMigrator(client, cfg.ProjectID, cfg.DatasetID, *appliedBy, log).Apply(ctx, migrations)
	if err != nil {
		return err
	}

	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
	return nil
}
