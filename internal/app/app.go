// Package app assembles the services and backends selected by configuration.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvloznov/creditscore/internal/api"
	"github.com/dvloznov/creditscore/internal/api/handlers"
	"github.com/dvloznov/creditscore/internal/blob"
	"github.com/dvloznov/creditscore/internal/bulkupload"
	"github.com/dvloznov/creditscore/internal/businesses"
	"github.com/dvloznov/creditscore/internal/config"
	"github.com/dvloznov/creditscore/internal/events"
	infrabq "github.com/dvloznov/creditscore/internal/infra/bigquery"
	"github.com/dvloznov/creditscore/internal/infra/postgres"
	"github.com/dvloznov/creditscore/internal/jobs"
	jobsinmemory "github.com/dvloznov/creditscore/internal/jobs/inmemory"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/dvloznov/creditscore/internal/scores"
	"github.com/dvloznov/creditscore/internal/statement"
	"github.com/dvloznov/creditscore/internal/store"
	"github.com/dvloznov/creditscore/internal/store/inmemory"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// App holds every long-lived component of one process.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Store  store.Repository
	Blobs  blob.Store
	Locker lock.Locker
	Events events.Publisher

	Businesses *businesses.Service
	Uploads    *bulkupload.Service
	Statements *statement.Service
	Scores     *scores.Service

	JobStore *jobsinmemory.Store
	Queue    *jobsinmemory.Queue

	closers []func() error
}

// New connects the configured backends and builds the services. On error
// everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.Store, err = a.openStore(ctx); err != nil {
		return nil, err
	}
	if a.Blobs, err = a.openBlobs(ctx); err != nil {
		return nil, err
	}
	if a.Locker, err = a.openLocker(ctx); err != nil {
		return nil, err
	}
	if a.Events, err = a.openEvents(); err != nil {
		return nil, err
	}
	extractor, structurer := a.openOracle(ctx)

	a.Businesses = businesses.NewService(a.Store, log, nil)
	a.Uploads = bulkupload.NewService(a.Store, a.Locker, log, nil)
	a.Statements = statement.NewService(a.Store, a.Blobs, extractor, structurer, a.Locker, log, nil)
	a.Scores = scores.NewService(a.Store, a.Locker, a.Events, log, nil)

	a.JobStore = jobsinmemory.NewStore()
	a.Queue = jobsinmemory.NewQueue(jobsinmemory.QueueConfig{
		BufferSize:  cfg.Jobs.BufferSize,
		Workers:     cfg.Jobs.Workers,
		MaxRetries:  cfg.Jobs.MaxRetries,
		ShouldRetry: jobs.RetryUpstream,
	}, a.JobStore, log)
	a.closers = append(a.closers, a.Queue.Close)

	return a, nil
}

// StartWorkers begins processing queued ingestion jobs.
func (a *App) StartWorkers(ctx context.Context) error {
	return a.Queue.Start(ctx, jobs.NewIngestStatementHandler(a.Statements))
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	maxUpload := a.Config.Server.MaxUpload
	return api.NewRouter(api.Handlers{
		Businesses:   handlers.NewBusinessesHandler(a.Businesses, a.Log),
		Transactions: handlers.NewTransactionsHandler(a.Uploads, maxUpload, a.Log),
		Statements:   handlers.NewStatementsHandler(a.Statements, a.Businesses, a.Queue, maxUpload, a.Log),
		Scores:       handlers.NewScoresHandler(a.Scores, a.Log),
		Jobs:         handlers.NewJobsHandler(a.JobStore, a.Log),
	}, a.Log)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}

func (a *App) openStore(ctx context.Context) (store.Repository, error) {
	cfg := a.Config.Store
	switch cfg.Backend {
	case "postgres":
		db, err := postgres.Open(cfg.Postgres, a.Log)
		if err != nil {
			return nil, err
		}
		repo := postgres.NewRepository(db)
		a.closers = append(a.closers, repo.Close)
		if err := postgres.AutoMigrate(db); err != nil {
			return nil, err
		}
		return repo, nil

	case "bigquery":
		repo, err := infrabq.NewRepository(ctx, cfg.BigQuery)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, repo.Close)
		a.Log.Info().Str("project", cfg.BigQuery.ProjectID).Str("dataset", cfg.BigQuery.DatasetID).Msg("Using BigQuery store")
		return repo, nil

	case "memory":
		a.Log.Warn().Msg("Using in-memory store; data is lost on restart")
		return inmemory.NewStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func (a *App) openBlobs(ctx context.Context) (blob.Store, error) {
	cfg := a.Config.Blob
	switch cfg.Backend {
	case "gcs":
		gcs, err := blob.NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, nil
	case "memory":
		return blob.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
}

func (a *App) openLocker(ctx context.Context) (lock.Locker, error) {
	cfg := a.Config.Lock
	if cfg.Backend != "redis" {
		return lock.NewKeyedMutex(), nil
	}

	rdb, err := lock.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	a.Log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis locks")
	return lock.NewRedisLocker(rdb, cfg.TTL, a.Log), nil
}

func (a *App) openEvents() (events.Publisher, error) {
	cfg := a.Config.Events
	if cfg.AMQPURL == "" {
		return events.Noop{}, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange, a.Log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub.Close)
	return pub, nil
}

// openOracle builds the extractor and structurer. Without a model client
// text documents still extract, and structuring fails as an upstream error.
func (a *App) openOracle(ctx context.Context) (oracle.TextExtractor, oracle.Structurer) {
	cfg := a.Config.Oracle

	client, err := oracle.NewGenAIClient(ctx, cfg.APIKey)
	if err != nil {
		a.Log.Warn().Err(err).Msg("Gemini client unavailable; statement structuring disabled")
		return oracle.RoutingExtractor{Text: oracle.PlainTextExtractor{}}, oracle.Disabled{Reason: err.Error()}
	}

	model := cfg.Model
	if model == "" {
		model = oracle.DefaultModelName
	}

	extractor := oracle.RoutingExtractor{
		Text:   oracle.PlainTextExtractor{},
		Binary: oracle.NewBoundedExtractor(oracle.NewGeminiExtractor(client.Models, model), cfg.Timeout),
	}
	structurer := oracle.NewRetryingStructurer(
		oracle.NewGeminiStructurer(client.Models, model, a.Log),
		oracle.RetryPolicy{
			Timeout:        cfg.Timeout,
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			Budget:         cfg.Budget,
		},
		a.Log,
	)
	return extractor, structurer
}
