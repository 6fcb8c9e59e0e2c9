package bulkupload

import (
	"context"
	"io"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Repository is the persistence the upload service needs.
type Repository interface {
	store.BusinessRepository
	store.TransactionRepository
}

// Result describes an accepted batch.
type Result struct {
	Created      int                  `json:"created"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Service validates, deduplicates and persists uploaded batches.
type Service struct {
	repo      Repository
	locker    lock.Locker
	validator *Validator
	log       zerolog.Logger
	now       func() time.Time
}

// NewService creates an upload service. A nil now uses time.Now.
func NewService(repo Repository, locker lock.Locker, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		validator: NewValidator(now),
		log:       log,
		now:       now,
	}
}

// UploadFile decodes an upload in the format implied by filename or
// contentType, then behaves like Upload.
func (s *Service) UploadFile(ctx context.Context, businessID, filename, contentType string, r io.Reader) (*Result, error) {
	format, err := DetectFormat(filename, contentType)
	if err != nil {
		return nil, err
	}
	records, err := Parse(format, r)
	if err != nil {
		return nil, err
	}
	return s.Upload(ctx, businessID, records)
}

// Upload accepts the whole batch or nothing. Row failures are returned
// together as a *BatchError; batch-level failures are conflicts.
func (s *Service) Upload(ctx context.Context, businessID string, records []RawRecord) (*Result, error) {
	const op = "bulkupload.Upload"
	log := s.log.With().Str("business_id", businessID).Int("rows", len(records)).Logger()

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading business", err)
	}
	if business == nil {
		return nil, apperr.Newf(apperr.KindNotFound, op, "business %s not found", businessID)
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.KindValidation, op, "upload contains no records")
	}

	valid, err := s.validator.ValidateAll(records)
	if err != nil {
		log.Info().Err(err).Msg("Upload rejected by validation")
		return nil, err
	}
	if err := CheckBatch(businessID, valid); err != nil {
		log.Info().Err(err).Msg("Upload rejected by batch checks")
		return nil, err
	}

	release, err := s.locker.Lock(ctx, "ingest:"+businessID)
	if err != nil {
		return nil, err
	}
	defer release()

	createdAt := s.now().UTC()
	txs := make([]domain.Transaction, 0, len(valid))
	for _, r := range valid {
		txs = append(txs, domain.Transaction{
			ID:           uuid.NewString(),
			BusinessID:   businessID,
			Date:         r.Date,
			Description:  r.Description,
			Amount:       r.Amount,
			Type:         r.Type,
			BalanceAfter: r.Balance,
			Reference:    r.Reference,
			CreatedAt:    createdAt,
		})
	}

	if err := s.repo.ImportTransactions(ctx, businessID, txs, RejectExistingReferences); err != nil {
		if k := apperr.KindOf(err); k == apperr.KindConflict || k == apperr.KindValidation {
			log.Info().Err(err).Msg("Upload rejected by persisted references")
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPersistence, op, "importing transactions", err)
	}

	log.Info().Int("created", len(txs)).Msg("Transactions imported")
	return &Result{Created: len(txs), Transactions: txs}, nil
}

// ListTransactions returns a business's uploaded transactions by date.
func (s *Service) ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error) {
	const op = "bulkupload.ListTransactions"

	business, err := s.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading business", err)
	}
	if business == nil {
		return nil, apperr.Newf(apperr.KindNotFound, op, "business %s not found", businessID)
	}

	txs, err := s.repo.ListTransactions(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "listing transactions", err)
	}
	return txs, nil
}
