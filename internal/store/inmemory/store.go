package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/store"
)

// Store is an in-memory implementation of store.Repository.
// It is safe for concurrent use; every write method holds the write lock for
// its whole duration so multi-record writes are atomic. Values are copied on
// the way in and out.
type Store struct {
	mu             sync.RWMutex
	businesses     map[string]domain.Business
	transactions   map[string][]domain.Transaction
	references     map[string]map[string]struct{}
	statements     map[string]domain.Statement
	statementRows  map[string][]domain.StatementTransaction
	scores         map[string]domain.CreditScore
	audit          map[string][]domain.ScoreAuditEntry
	failSaveScores error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		businesses:    make(map[string]domain.Business),
		transactions:  make(map[string][]domain.Transaction),
		references:    make(map[string]map[string]struct{}),
		statements:    make(map[string]domain.Statement),
		statementRows: make(map[string][]domain.StatementTransaction),
		scores:        make(map[string]domain.CreditScore),
		audit:         make(map[string][]domain.ScoreAuditEntry),
	}
}

// FailSaveScore makes every subsequent SaveScore return err without writing.
// Pass nil to restore normal behaviour.
func (s *Store) FailSaveScore(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaveScores = err
}

// CreateBusiness implements store.BusinessRepository.
func (s *Store) CreateBusiness(ctx context.Context, b *domain.Business) error {
	if b.ID == "" {
		return fmt.Errorf("CreateBusiness: business ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.businesses[b.ID]; exists {
		return apperr.Newf(apperr.KindConflict, "CreateBusiness", "business %s already exists", b.ID)
	}
	s.businesses[b.ID] = *b
	return nil
}

// GetBusiness implements store.BusinessRepository.
func (s *Store) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.businesses[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// ImportTransactions implements store.TransactionRepository.
func (s *Store) ImportTransactions(ctx context.Context, businessID string, txs []domain.Transaction, guard store.ReferenceGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := s.references[businessID]
	var existing []string
	for _, tx := range txs {
		if _, ok := refs[tx.Reference]; ok {
			existing = append(existing, tx.Reference)
		}
	}

	if guard != nil {
		if err := guard(existing); err != nil {
			return err
		}
	}

	// Backstop for callers that pass no guard.
	if len(existing) > 0 {
		return apperr.Newf(apperr.KindConflict, "ImportTransactions", "reference %q already exists", existing[0])
	}
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if _, dup := seen[tx.Reference]; dup {
			return apperr.Newf(apperr.KindConflict, "ImportTransactions", "reference %q already exists", tx.Reference)
		}
		seen[tx.Reference] = struct{}{}
	}

	if refs == nil {
		refs = make(map[string]struct{})
		s.references[businessID] = refs
	}
	for _, tx := range txs {
		refs[tx.Reference] = struct{}{}
		s.transactions[businessID] = append(s.transactions[businessID], copyTransaction(tx))
	}
	return nil
}

// ListTransactions implements store.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context, businessID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.transactions[businessID]
	out := make([]domain.Transaction, 0, len(src))
	for _, tx := range src {
		out = append(out, copyTransaction(tx))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CreateStatement implements store.StatementRepository.
func (s *Store) CreateStatement(ctx context.Context, st *domain.Statement, rows []domain.StatementTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.statements[st.ID]; exists {
		return apperr.Newf(apperr.KindConflict, "CreateStatement", "statement %s already exists", st.ID)
	}
	for _, other := range s.statements {
		if other.Reference == st.Reference {
			return apperr.Newf(apperr.KindConflict, "CreateStatement", "statement reference %s already exists", st.Reference)
		}
	}

	s.statements[st.ID] = *st
	copied := make([]domain.StatementTransaction, 0, len(rows))
	for _, r := range rows {
		copied = append(copied, copyStatementRow(r))
	}
	s.statementRows[st.ID] = copied
	return nil
}

// GetStatement implements store.StatementRepository.
func (s *Store) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statements[id]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// FindStatementByChecksum implements store.StatementRepository.
func (s *Store) FindStatementByChecksum(ctx context.Context, businessID, checksum string) (*domain.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, st := range s.statements {
		if st.BusinessID == businessID && st.ChecksumSHA256 == checksum {
			found := st
			return &found, nil
		}
	}
	return nil, nil
}

// ListStatementTransactions implements store.StatementRepository.
func (s *Store) ListStatementTransactions(ctx context.Context, businessID string) ([]domain.StatementTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StatementTransaction
	for id, st := range s.statements {
		if st.BusinessID != businessID {
			continue
		}
		for _, r := range s.statementRows[id] {
			out = append(out, copyStatementRow(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// GetCreditScore implements store.ScoreRepository.
func (s *Store) GetCreditScore(ctx context.Context, businessID string) (*domain.CreditScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.scores[businessID]
	if !ok {
		return nil, nil
	}
	return &cs, nil
}

// SaveScore implements store.ScoreRepository.
func (s *Store) SaveScore(ctx context.Context, score domain.CreditScore, entry domain.ScoreAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSaveScores != nil {
		return apperr.Wrap(apperr.KindPersistence, "SaveScore", "saving score", s.failSaveScores)
	}

	s.scores[score.BusinessID] = score
	s.audit[entry.BusinessID] = append(s.audit[entry.BusinessID], entry)
	return nil
}

// ListAuditEntries implements store.ScoreRepository.
func (s *Store) ListAuditEntries(ctx context.Context, businessID string) ([]domain.ScoreAuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.audit[businessID]
	out := make([]domain.ScoreAuditEntry, len(src))
	copy(out, src)
	return out, nil
}

// Close implements store.Repository.
func (s *Store) Close() error {
	return nil
}

func copyTransaction(tx domain.Transaction) domain.Transaction {
	if tx.BalanceAfter != nil {
		b := *tx.BalanceAfter
		tx.BalanceAfter = &b
	}
	return tx
}

func copyStatementRow(r domain.StatementTransaction) domain.StatementTransaction {
	if r.Balance != nil {
		b := *r.Balance
		r.Balance = &b
	}
	return r
}

// Ensure Store implements store.Repository.
var _ store.Repository = (*Store)(nil)
