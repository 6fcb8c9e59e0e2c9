// Package statement ingests bank statement documents: the document is
// fingerprinted, its text extracted, structured by the oracle, coerced row
// by row, aggregated and committed together with the original bytes.
package statement

import (
	"context"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/blob"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/dvloznov/creditscore/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repository is the persistence statement ingestion needs.
type Repository interface {
	store.BusinessRepository
	store.StatementRepository
}

// Request is one uploaded statement document.
type Request struct {
	BusinessID  string
	Filename    string
	ContentType string
	Document    []byte
}

// Result summarises an ingested statement.
type Result struct {
	StatementID      string          `json:"statement_id"`
	Reference        string          `json:"reference"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenditure decimal.Decimal `json:"total_expenditure"`
	RowsAccepted     int             `json:"rows_accepted"`
	RowsDropped      int             `json:"rows_dropped"`
	Rejected         []Rejected      `json:"rejected,omitempty"`
}

// Service runs the ingestion pipeline and serves stored statements.
type Service struct {
	repo     Repository
	blobs    blob.Store
	pipeline *Pipeline
	log      zerolog.Logger
}

// NewService wires the ingestion pipeline. A nil now uses time.Now.
func NewService(
	repo Repository,
	blobs blob.Store,
	extractor oracle.TextExtractor,
	structurer oracle.Structurer,
	locker lock.Locker,
	log zerolog.Logger,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:  repo,
		blobs: blobs,
		log:   log,
		pipeline: NewPipeline(
			&ResolveBusinessStep{Repo: repo},
			&ChecksumStep{Repo: repo},
			&ExtractTextStep{Extractor: extractor, Log: log},
			&StructureStep{Structurer: structurer},
			&CoerceStep{Log: log},
			&AggregateStep{Now: now},
			&StoreDocumentStep{Blobs: blobs},
			&PersistStep{Repo: repo, Blobs: blobs, Locker: locker, Log: log},
		),
	}
}

// Ingest processes one statement document end to end. Either the header,
// its rows and the stored document all exist afterwards, or none do.
func (s *Service) Ingest(ctx context.Context, req Request) (*Result, error) {
	state := &State{
		BusinessID:  req.BusinessID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Document:    req.Document,
		StatementID: uuid.NewString(),
	}
	log := logger.ForBusiness(s.log, req.BusinessID).With().
		Str("statement_id", state.StatementID).
		Str("filename", req.Filename).
		Logger()

	if err := s.pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Str("kind", string(apperr.KindOf(err))).Msg("Statement ingestion failed")
		return nil, err
	}

	log.Info().
		Int("rows_accepted", len(state.Rows)).
		Int("rows_dropped", len(state.Rejected)).
		Msg("Statement ingested")

	st := state.Statement
	return &Result{
		StatementID:      st.ID,
		Reference:        st.Reference,
		StartDate:        st.StartDate.Format(time.DateOnly),
		EndDate:          st.EndDate.Format(time.DateOnly),
		TotalIncome:      st.TotalIncome,
		TotalExpenditure: st.TotalExpenditure,
		RowsAccepted:     len(state.Rows),
		RowsDropped:      len(state.Rejected),
		Rejected:         state.Rejected,
	}, nil
}

// Get returns a statement header.
func (s *Service) Get(ctx context.Context, statementID string) (*domain.Statement, error) {
	st, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "statement.Get", "loading statement", err)
	}
	if st == nil {
		return nil, apperr.Newf(apperr.KindNotFound, "statement.Get", "statement %s not found", statementID)
	}
	return st, nil
}

// Document returns the stored original bytes of a statement.
func (s *Service) Document(ctx context.Context, statementID string) (*domain.Statement, []byte, error) {
	st, err := s.Get(ctx, statementID)
	if err != nil {
		return nil, nil, err
	}
	if st.DocumentURI == "" {
		return nil, nil, apperr.Newf(apperr.KindNotFound, "statement.Document", "statement %s has no stored document", statementID)
	}
	data, err := s.blobs.Get(ctx, st.DocumentURI)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil, err
		}
		return nil, nil, apperr.Wrap(apperr.KindPersistence, "statement.Document", "reading statement document", err)
	}
	return st, data, nil
}
