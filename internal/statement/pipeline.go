package statement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/blob"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/rs/zerolog"
)

// Step is a single stage of statement ingestion.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is shared by every step of one ingestion.
type State struct {
	BusinessID  string
	Filename    string
	ContentType string
	Document    []byte

	StatementID string
	Checksum    string
	Text        string
	Candidates  []oracle.Candidate
	Rows        []domain.StatementTransaction
	Rejected    []Rejected
	DocumentURI string
	Statement   *domain.Statement
}

// Pipeline executes steps in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// ResolveBusinessStep fails when the business does not exist.
type ResolveBusinessStep struct {
	Repo Repository
}

func (s *ResolveBusinessStep) Execute(ctx context.Context, state *State) error {
	b, err := s.Repo.GetBusiness(ctx, state.BusinessID)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "ResolveBusiness", "loading business", err)
	}
	if b == nil {
		return apperr.Newf(apperr.KindNotFound, "ResolveBusiness", "business %s not found", state.BusinessID)
	}
	return nil
}

// ChecksumStep fingerprints the document and rejects a document already
// ingested for the same business.
type ChecksumStep struct {
	Repo Repository
}

func (s *ChecksumStep) Execute(ctx context.Context, state *State) error {
	if len(state.Document) == 0 {
		return apperr.New(apperr.KindValidation, "Checksum", "statement document is empty")
	}
	sum := sha256.Sum256(state.Document)
	state.Checksum = hex.EncodeToString(sum[:])
	return rejectKnownChecksum(ctx, s.Repo, state)
}

func rejectKnownChecksum(ctx context.Context, repo Repository, state *State) error {
	existing, err := repo.FindStatementByChecksum(ctx, state.BusinessID, state.Checksum)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "Checksum", "looking up document checksum", err)
	}
	if existing != nil {
		return apperr.Newf(apperr.KindConflict, "Checksum",
			"statement document already ingested as %s", existing.ID)
	}
	return nil
}

// ExtractTextStep writes the document to a temporary file and extracts its
// text. The file is removed on every exit path.
type ExtractTextStep struct {
	Extractor oracle.TextExtractor
	Log       zerolog.Logger
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *State) error {
	const op = "ExtractText"

	f, err := os.CreateTemp("", "statement-*"+filepath.Ext(state.Filename))
	if err != nil {
		return fmt.Errorf("%s: creating temp file: %w", op, err)
	}
	tmpPath := f.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			s.Log.Warn().Err(err).Str("path", tmpPath).Msg("Failed to remove temp file")
		}
	}()

	if _, err := f.Write(state.Document); err != nil {
		f.Close()
		return fmt.Errorf("%s: writing temp file: %w", op, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: closing temp file: %w", op, err)
	}

	text, err := s.Extractor.ExtractText(ctx, tmpPath, state.ContentType)
	if apperr.Is(err, apperr.KindUpstream) {
		return err
	}
	if err != nil {
		return apperr.Wrap(apperr.KindExtraction, op, "could not extract text from document", err)
	}
	if strings.TrimSpace(text) == "" {
		return apperr.New(apperr.KindExtraction, op, "document contains no text")
	}
	state.Text = text
	return nil
}

// StructureStep asks the oracle for candidate rows.
type StructureStep struct {
	Structurer oracle.Structurer
}

func (s *StructureStep) Execute(ctx context.Context, state *State) error {
	candidates, err := s.Structurer.Structure(ctx, state.Text)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return apperr.Wrap(apperr.KindUpstream, "Structure", "statement structuring failed", err)
		}
		return err
	}
	state.Candidates = candidates
	return nil
}

// CoerceStep types the candidates and drops those that cannot be read.
type CoerceStep struct {
	Log zerolog.Logger
}

func (s *CoerceStep) Execute(ctx context.Context, state *State) error {
	state.Rows, state.Rejected = Coerce(state.BusinessID, state.StatementID, state.Candidates)

	for _, r := range state.Rejected {
		s.Log.Debug().Int("index", r.Index).Str("reason", r.Reason).Msg("Dropped statement row")
	}
	if len(state.Rows) == 0 {
		return apperr.New(apperr.KindNoUsableRows, "Coerce", "no usable transactions extracted")
	}
	return nil
}

// AggregateStep builds the statement header from the accepted rows.
type AggregateStep struct {
	Now func() time.Time
}

func (s *AggregateStep) Execute(ctx context.Context, state *State) error {
	start, end, income, expenditure := Aggregate(state.Rows)
	state.Statement = &domain.Statement{
		ID:               state.StatementID,
		BusinessID:       state.BusinessID,
		Reference:        ReferenceFor(state.StatementID),
		StartDate:        start,
		EndDate:          end,
		TotalIncome:      income,
		TotalExpenditure: expenditure,
		Filename:         state.Filename,
		ContentType:      state.ContentType,
		ChecksumSHA256:   state.Checksum,
		CreatedAt:        s.Now().UTC(),
	}
	return nil
}

// StoreDocumentStep keeps the original bytes in the blob store.
type StoreDocumentStep struct {
	Blobs blob.Store
}

func (s *StoreDocumentStep) Execute(ctx context.Context, state *State) error {
	name := path.Base(filepath.ToSlash(state.Filename))
	if name == "." || name == "/" || name == "" {
		name = "document"
	}
	key := path.Join("statements", state.BusinessID, state.StatementID, name)

	uri, err := s.Blobs.Put(ctx, key, state.ContentType, state.Document)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "StoreDocument", "storing statement document", err)
	}
	state.DocumentURI = uri
	state.Statement.DocumentURI = uri
	return nil
}

// PersistStep commits the header and rows together under the business's
// ingestion lock. The stored document is removed if the commit fails.
type PersistStep struct {
	Repo   Repository
	Blobs  blob.Store
	Locker lock.Locker
	Log    zerolog.Logger
}

func (s *PersistStep) Execute(ctx context.Context, state *State) (err error) {
	defer func() {
		if err == nil || state.DocumentURI == "" {
			return
		}
		if derr := s.Blobs.Delete(context.WithoutCancel(ctx), state.DocumentURI); derr != nil {
			s.Log.Warn().Err(derr).Str("document_uri", state.DocumentURI).Msg("Failed to remove orphaned document")
		}
	}()

	release, err := s.Locker.Lock(ctx, "ingest:"+state.BusinessID)
	if err != nil {
		return err
	}
	defer release()

	if err := rejectKnownChecksum(ctx, s.Repo, state); err != nil {
		return err
	}

	if err := s.Repo.CreateStatement(ctx, state.Statement, state.Rows); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return err
		}
		return apperr.Wrap(apperr.KindPersistence, "PersistStatement", "saving statement", err)
	}
	return nil
}

// ReferenceFor derives the human-facing statement reference from its id.
func ReferenceFor(statementID string) string {
	id := strings.ReplaceAll(statementID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "STMT-" + strings.ToUpper(id)
}

// Preview runs extraction, structuring and coercion on a local document
// without touching storage. The returned state carries the rows that would
// be ingested and the rejected candidates.
func Preview(ctx context.Context, extractor oracle.TextExtractor, structurer oracle.Structurer, log zerolog.Logger, filename, contentType string, document []byte) (*State, error) {
	state := &State{
		BusinessID:  "preview",
		Filename:    filename,
		ContentType: contentType,
		Document:    document,
	}
	p := NewPipeline(
		&ExtractTextStep{Extractor: extractor, Log: log},
		&StructureStep{Structurer: structurer},
		&CoerceStep{Log: log},
		&AggregateStep{Now: time.Now},
	)
	if err := p.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}
