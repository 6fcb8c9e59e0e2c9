// Package store declares the persistence boundary. Implementations live in
// store/inmemory, infra/postgres and infra/bigquery.
package store

import (
	"context"

	"github.com/dvloznov/creditscore/internal/domain"
)

// ReferenceGuard is called inside the import transaction with the batch
// references that already exist for the business. Returning an error aborts
// the import.
type ReferenceGuard func(existing []string) error

// BusinessRepository stores businesses. GetBusiness returns nil, nil when the
// business does not exist.
type BusinessRepository interface {
	CreateBusiness(ctx context.Context, b *domain.Business) error
	GetBusiness(ctx context.Context, id string) (*domain.Business, error)
}

// TransactionRepository stores bulk-uploaded transactions.
type TransactionRepository interface {
	// ImportTransactions inserts txs for businessID atomically. It reads the
	// already persisted references among the batch, passes them to guard,
	// and inserts nothing if guard fails. A (business, reference) uniqueness
	// violation is reported as a conflict.
	ImportTransactions(ctx context.Context, businessID string, txs []domain.Transaction, guard ReferenceGuard) error

	// ListTransactions returns the business's transactions ordered by date.
	ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error)
}

// StatementRepository stores statement headers and their rows.
type StatementRepository interface {
	// CreateStatement persists the header and all rows in one transaction.
	CreateStatement(ctx context.Context, st *domain.Statement, rows []domain.StatementTransaction) error

	// GetStatement returns nil, nil when the statement does not exist.
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)

	// FindStatementByChecksum returns nil, nil when no statement of the
	// business has the given document checksum.
	FindStatementByChecksum(ctx context.Context, businessID, checksum string) (*domain.Statement, error)

	// ListStatementTransactions returns every statement row of the business
	// ordered by date.
	ListStatementTransactions(ctx context.Context, businessID string) ([]domain.StatementTransaction, error)
}

// ScoreRepository stores the score cache and the audit trail.
type ScoreRepository interface {
	// GetCreditScore returns nil, nil when no score is cached.
	GetCreditScore(ctx context.Context, businessID string) (*domain.CreditScore, error)

	// SaveScore upserts the cached score and appends entry in one transaction.
	SaveScore(ctx context.Context, score domain.CreditScore, entry domain.ScoreAuditEntry) error

	// ListAuditEntries returns the business's audit trail, oldest first.
	ListAuditEntries(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error)
}

// Repository is the full persistence surface used by the services.
type Repository interface {
	BusinessRepository
	TransactionRepository
	StatementRepository
	ScoreRepository
	Close() error
}
