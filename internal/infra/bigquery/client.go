// Package bigquery is the BigQuery-backed store.Repository. Multi-row writes
// run as scripts inside BEGIN TRANSACTION so a failed write leaves nothing
// behind.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/config"
	"google.golang.org/api/iterator"
)

const (
	businessesTable            = "businesses"
	transactionsTable          = "transactions"
	statementsTable            = "statements"
	statementTransactionsTable = "statement_transactions"
	creditScoresTable          = "credit_scores"
	auditTable                 = "score_audit_entries"
)

// Messages raised from scripts when an in-transaction uniqueness check fails.
const (
	duplicateBusinessMsg  = "duplicate business"
	duplicateReferenceMsg = "duplicate transaction reference"
	duplicateStatementMsg = "duplicate statement"
)

// Repository implements store.Repository on BigQuery. It holds one shared
// client for all operations.
type Repository struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewRepository creates a client for cfg.ProjectID.
func NewRepository(ctx context.Context, cfg config.BigQueryConfig) (*Repository, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("NewRepository: project ID is required")
	}
	client, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return NewRepositoryWithClient(client, cfg.ProjectID, cfg.DatasetID), nil
}

// NewRepositoryWithClient wraps an existing client.
func NewRepositoryWithClient(client *bigquery.Client, project, dataset string) *Repository {
	return &Repository{client: client, project: project, dataset: dataset}
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table renders the fully qualified, backtick-quoted table name.
func (r *Repository) table(name string) string {
	return tableRef(r.project, r.dataset, name)
}

func tableRef(project, dataset, name string) string {
	return "`" + project + "." + dataset + "." + name + "`"
}

// runDML runs q and waits for the job to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

// readAll runs q and loads every row into a T.
func readAll[T any](ctx context.Context, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []T
	for {
		var row T
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// classify maps a failed query onto the application taxonomy. Script RAISE
// messages for uniqueness checks become conflicts.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var kinded apperr.Kinded
	if errors.As(err, &kinded) {
		return err
	}
	msg := err.Error()
	for _, marker := range []string{duplicateBusinessMsg, duplicateReferenceMsg, duplicateStatementMsg} {
		if strings.Contains(msg, marker) {
			return apperr.Wrap(apperr.KindConflict, op, marker, err)
		}
	}
	return apperr.Wrap(apperr.KindPersistence, op, "bigquery operation failed", err)
}

// transactional wraps body in a script that rolls back and re-raises on
// any error.
func transactional(body string) string {
	return `
BEGIN
  BEGIN TRANSACTION;
` + body + `
  COMMIT TRANSACTION;
EXCEPTION WHEN ERROR THEN
  ROLLBACK TRANSACTION;
  RAISE USING MESSAGE = @@error.message;
END;`
}
