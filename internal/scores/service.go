// Package scores serves credit scores. Reads are answered from the score
// cache; misses and forced refreshes recompute under a per-business lock and
// record the computation in the audit trail.
package scores

import (
	"context"
	"sort"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/events"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/logger"
	"github.com/dvloznov/creditscore/internal/scoring"
	"github.com/dvloznov/creditscore/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRequester is recorded when a request names no principal.
const DefaultRequester = "api"

// Repository is the persistence the score service needs.
type Repository interface {
	store.BusinessRepository
	store.TransactionRepository
	store.StatementRepository
	store.ScoreRepository
}

// Request asks for a business's score.
type Request struct {
	BusinessID  string
	Refresh     bool
	RequestedBy string
	// StatementID is recorded on the audit entry when the read came
	// through a statement.
	StatementID string
}

// StatementScore is a score read through one of the business's statements.
type StatementScore struct {
	StatementID  string `json:"statement_id"`
	BusinessName string `json:"business_name"`
	domain.CreditScore
}

// Service reads and recomputes scores.
type Service struct {
	repo   Repository
	locker lock.Locker
	engine *scoring.Engine
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// NewService creates a score service. A nil publisher discards events and a
// nil now uses time.Now.
func NewService(repo Repository, locker lock.Locker, publisher events.Publisher, log zerolog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		repo:   repo,
		locker: locker,
		engine: scoring.NewEngine(now),
		events: publisher,
		log:    log,
		now:    now,
	}
}

// GetScore returns the cached score, computing it on a miss or when
// req.Refresh is set. Each computation appends exactly one audit entry;
// cache hits append nothing.
func (s *Service) GetScore(ctx context.Context, req Request) (*domain.CreditScore, error) {
	const op = "scores.GetScore"
	log := logger.ForBusiness(s.log, req.BusinessID)

	if _, err := s.business(ctx, op, req.BusinessID); err != nil {
		return nil, err
	}

	if !req.Refresh {
		if cached, err := s.cached(ctx, op, req.BusinessID); err != nil || cached != nil {
			return cached, err
		}
	}

	release, err := s.locker.Lock(ctx, "score:"+req.BusinessID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Another request may have filled the cache while this one waited.
	if !req.Refresh {
		if cached, err := s.cached(ctx, op, req.BusinessID); err != nil || cached != nil {
			return cached, err
		}
	}

	history, err := s.history(ctx, op, req.BusinessID)
	if err != nil {
		return nil, err
	}
	result := s.engine.Score(history)

	requestedBy := req.RequestedBy
	if requestedBy == "" {
		requestedBy = DefaultRequester
	}
	computedAt := s.now().UTC()

	score := domain.CreditScore{
		BusinessID: req.BusinessID,
		Score:      result.Score,
		RiskTier:   result.RiskTier,
		Version:    result.Version,
		ComputedAt: computedAt,
	}
	entry := domain.ScoreAuditEntry{
		ID:          uuid.NewString(),
		BusinessID:  req.BusinessID,
		Score:       result.Score,
		RiskTier:    result.RiskTier,
		Version:     result.Version,
		Timestamp:   computedAt,
		RequestedBy: requestedBy,
		StatementID: req.StatementID,
	}

	if err := s.repo.SaveScore(ctx, score, entry); err != nil {
		log.Error().Err(err).Msg("Failed to save score")
		if apperr.Is(err, apperr.KindPersistence) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.KindPersistence, op, "saving score", err)
	}

	log.Info().
		Int("score", result.Score).
		Str("risk_tier", string(result.RiskTier)).
		Str("version", result.Version).
		Int("history", len(history)).
		Int("revenue", result.Revenue).
		Int("frequency", result.Frequency).
		Int("stability", result.Stability).
		Bool("refresh", req.Refresh).
		Msg("Score computed")

	ev := events.ScoreComputed{
		BusinessID:  score.BusinessID,
		Score:       score.Score,
		RiskTier:    score.RiskTier,
		Version:     score.Version,
		ComputedAt:  computedAt,
		RequestedBy: requestedBy,
		StatementID: req.StatementID,
	}
	if err := s.events.PublishScoreComputed(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("Failed to publish score event")
	}

	return &score, nil
}

// GetRiskTier returns only the risk tier, computing the score on a miss.
func (s *Service) GetRiskTier(ctx context.Context, businessID, requestedBy string) (domain.RiskTier, error) {
	score, err := s.GetScore(ctx, Request{BusinessID: businessID, RequestedBy: requestedBy})
	if err != nil {
		return "", err
	}
	return score.RiskTier, nil
}

// ScoreForStatement resolves the statement's business and reads its score.
func (s *Service) ScoreForStatement(ctx context.Context, statementID string, refresh bool, requestedBy string) (*StatementScore, error) {
	const op = "scores.ScoreForStatement"

	st, err := s.repo.GetStatement(ctx, statementID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading statement", err)
	}
	if st == nil {
		return nil, apperr.Newf(apperr.KindNotFound, op, "statement %s not found", statementID)
	}

	b, err := s.business(ctx, op, st.BusinessID)
	if err != nil {
		return nil, err
	}

	score, err := s.GetScore(ctx, Request{
		BusinessID:  st.BusinessID,
		Refresh:     refresh,
		RequestedBy: requestedBy,
		StatementID: st.ID,
	})
	if err != nil {
		return nil, err
	}
	return &StatementScore{
		StatementID:  st.ID,
		BusinessName: b.Name,
		CreditScore:  *score,
	}, nil
}

// AuditTrail returns every recorded computation for the business, oldest
// first.
func (s *Service) AuditTrail(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error) {
	const op = "scores.AuditTrail"

	if _, err := s.business(ctx, op, businessID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAuditEntries(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "listing audit entries", err)
	}
	return entries, nil
}

func (s *Service) business(ctx context.Context, op, id string) (*domain.Business, error) {
	b, err := s.repo.GetBusiness(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading business", err)
	}
	if b == nil {
		return nil, apperr.Newf(apperr.KindNotFound, op, "business %s not found", id)
	}
	return b, nil
}

func (s *Service) cached(ctx context.Context, op, businessID string) (*domain.CreditScore, error) {
	cs, err := s.repo.GetCreditScore(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "reading cached score", err)
	}
	return cs, nil
}

// history merges uploaded transactions and statement rows into one
// date-ordered sequence.
func (s *Service) history(ctx context.Context, op, businessID string) ([]domain.HistoryRecord, error) {
	txs, err := s.repo.ListTransactions(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading transactions", err)
	}
	rows, err := s.repo.ListStatementTransactions(ctx, businessID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, op, "loading statement rows", err)
	}

	history := make([]domain.HistoryRecord, 0, len(txs)+len(rows))
	for _, tx := range txs {
		history = append(history, tx.HistoryRecord())
	}
	for _, r := range rows {
		history = append(history, r.HistoryRecord())
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Date.Before(history[j].Date) })
	return history, nil
}
