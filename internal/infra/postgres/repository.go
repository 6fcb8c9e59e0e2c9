package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// Repository implements store.Repository on PostgreSQL.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps an open connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBusiness implements store.BusinessRepository.
func (r *Repository) CreateBusiness(ctx context.Context, b *domain.Business) error {
	row := toBusinessRow(b)
	return translate("CreateBusiness", r.db.WithContext(ctx).Create(&row).Error)
}

// GetBusiness implements store.BusinessRepository.
func (r *Repository) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	var row businessRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("GetBusiness", err)
	}
	return row.toDomain(), nil
}

// ImportTransactions implements store.TransactionRepository.
func (r *Repository) ImportTransactions(ctx context.Context, businessID string, txs []domain.Transaction, guard store.ReferenceGuard) error {
	refs := make([]string, 0, len(txs))
	rows := make([]transactionRow, 0, len(txs))
	for _, tx := range txs {
		refs = append(refs, tx.Reference)
		rows = append(rows, toTransactionRow(tx))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if len(refs) > 0 {
			if err := tx.Model(&transactionRow{}).
				Where("business_id = ? AND reference IN ?", businessID, refs).
				Pluck("reference", &existing).Error; err != nil {
				return fmt.Errorf("failed to read existing references: %w", err)
			}
		}

		if guard != nil {
			if err := guard(existing); err != nil {
				return err
			}
		}

		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	return translate("ImportTransactions", err)
}

// ListTransactions implements store.TransactionRepository.
func (r *Repository) ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error) {
	var rows []transactionRow
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("date ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("ListTransactions", err)
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CreateStatement implements store.StatementRepository.
func (r *Repository) CreateStatement(ctx context.Context, st *domain.Statement, rows []domain.StatementTransaction) error {
	header := toStatementRow(st)
	lines := make([]statementTransactionRow, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, toStatementTransactionRow(row))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&header).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.CreateInBatches(lines, insertBatchSize).Error
	})
	return translate("CreateStatement", err)
}

// GetStatement implements store.StatementRepository.
func (r *Repository) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	var row statementRow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("GetStatement", err)
	}
	return row.toDomain(), nil
}

// FindStatementByChecksum implements store.StatementRepository.
func (r *Repository) FindStatementByChecksum(ctx context.Context, businessID, checksum string) (*domain.Statement, error) {
	var row statementRow
	err := r.db.WithContext(ctx).
		Where("business_id = ? AND checksum_sha256 = ?", businessID, checksum).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("FindStatementByChecksum", err)
	}
	return row.toDomain(), nil
}

// ListStatementTransactions implements store.StatementRepository.
func (r *Repository) ListStatementTransactions(ctx context.Context, businessID string) ([]domain.StatementTransaction, error) {
	var rows []statementTransactionRow
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("ListStatementTransactions", err)
	}

	out := make([]domain.StatementTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// GetCreditScore implements store.ScoreRepository.
func (r *Repository) GetCreditScore(ctx context.Context, businessID string) (*domain.CreditScore, error) {
	var row creditScoreRow
	err := r.db.WithContext(ctx).Where("business_id = ?", businessID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("GetCreditScore", err)
	}
	return row.toDomain(), nil
}

// SaveScore implements store.ScoreRepository.
func (r *Repository) SaveScore(ctx context.Context, score domain.CreditScore, entry domain.ScoreAuditEntry) error {
	cached := toCreditScoreRow(score)
	audit := toAuditEntryRow(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "business_id"}},
			UpdateAll: true,
		}).Create(&cached).Error; err != nil {
			return err
		}
		return tx.Create(&audit).Error
	})
	return translate("SaveScore", err)
}

// ListAuditEntries implements store.ScoreRepository.
func (r *Repository) ListAuditEntries(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error) {
	var rows []auditEntryRow
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("timestamp ASC, seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("ListAuditEntries", err)
	}

	out := make([]domain.ScoreAuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// Close implements store.Repository.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ store.Repository = (*Repository)(nil)
