package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/dvloznov/creditscore/internal/statement"
)

// StatementIngester is the part of statement.Service the worker calls.
type StatementIngester interface {
	Ingest(ctx context.Context, req statement.Request) (*statement.Result, error)
}

// NewIngestStatementHandler returns a JobHandler that runs statement
// ingestion and records the outcome on the job.
func NewIngestStatementHandler(ingester StatementIngester) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*IngestStatementJob)
		if !ok {
			return fmt.Errorf("unsupported job type %s", job.GetType())
		}

		res, err := ingester.Ingest(ctx, statement.Request{
			BusinessID:  j.BusinessID,
			Filename:    j.Filename,
			ContentType: j.ContentType,
			Document:    j.Document,
		})
		if err != nil {
			j.ErrorKind = string(apperr.KindOf(err))
			return err
		}

		j.StatementID = res.StatementID
		j.RowsAccepted = res.RowsAccepted
		j.RowsDropped = res.RowsDropped
		return nil
	}
}

// RetryUpstream reports whether err came from an external dependency and so
// may succeed on another attempt. Validation, conflicts and unusable
// documents fail the same way every time. Structuring failures that already
// spent the oracle retry budget, or that come from a disabled oracle, are
// not retried again.
func RetryUpstream(err error) bool {
	if errors.Is(err, oracle.ErrRetriesExhausted) || errors.Is(err, oracle.ErrUnavailable) {
		return false
	}
	return apperr.Is(err, apperr.KindUpstream)
}
