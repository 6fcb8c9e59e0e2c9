package statement

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/blob"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/dvloznov/creditscore/internal/store/inmemory"
	"github.com/rs/zerolog"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

// mockExtractor is a hand-written oracle.TextExtractor for tests.
type mockExtractor struct {
	ExtractTextFunc func(ctx context.Context, path, contentType string) (string, error)
	paths           []string
}

func (m *mockExtractor) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	m.paths = append(m.paths, path)
	return m.ExtractTextFunc(ctx, path, contentType)
}

// mockStructurer is a hand-written oracle.Structurer for tests.
type mockStructurer struct {
	StructureFunc func(ctx context.Context, text string) ([]oracle.Candidate, error)
}

func (m *mockStructurer) Structure(ctx context.Context, text string) ([]oracle.Candidate, error) {
	return m.StructureFunc(ctx, text)
}

// failingStatements makes CreateStatement fail after the blob is stored.
type failingStatements struct {
	*inmemory.Store
}

func (f failingStatements) CreateStatement(ctx context.Context, st *domain.Statement, rows []domain.StatementTransaction) error {
	return errors.New("connection reset")
}

type fixture struct {
	svc        *Service
	store      *inmemory.Store
	blobs      *blob.MemoryStore
	extractor  *mockExtractor
	structurer *mockStructurer
}

func newFixture(t *testing.T, wrap func(*inmemory.Store) Repository) *fixture {
	t.Helper()
	st := inmemory.NewStore()
	if err := st.CreateBusiness(context.Background(), &domain.Business{ID: "biz-1", Name: "Acme"}); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		store: st,
		blobs: blob.NewMemoryStore(),
		extractor: &mockExtractor{
			ExtractTextFunc: func(ctx context.Context, path, contentType string) (string, error) {
				data, err := os.ReadFile(path)
				return string(data), err
			},
		},
		structurer: &mockStructurer{
			StructureFunc: func(ctx context.Context, text string) ([]oracle.Candidate, error) {
				return []oracle.Candidate{
					{"date": "2024-01-05", "amount": json.Number("1000.00"), "balance": json.Number("1000.00"), "description": "Invoice"},
					{"date": "2024-01-20", "amount": json.Number("-250.50"), "balance": json.Number("749.50"), "description": "Rent"},
					{"date": "garbage", "amount": json.Number("10")},
				}, nil
			},
		},
	}

	var repo Repository = st
	if wrap != nil {
		repo = wrap(st)
	}
	f.svc = NewService(repo, f.blobs, f.extractor, f.structurer, lock.NewKeyedMutex(), zerolog.Nop(), fixedNow)
	return f
}

func request(doc string) Request {
	return Request{BusinessID: "biz-1", Filename: "jan.txt", ContentType: "text/plain", Document: []byte(doc)}
}

func TestService_Ingest(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Ingest(ctx, request("statement text"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if res.RowsAccepted != 2 || res.RowsDropped != 1 {
		t.Errorf("rows = %d accepted / %d dropped, want 2/1", res.RowsAccepted, res.RowsDropped)
	}
	if res.StartDate != "2024-01-05" || res.EndDate != "2024-01-20" {
		t.Errorf("span = %s..%s", res.StartDate, res.EndDate)
	}
	if res.TotalIncome.String() != "1000" || res.TotalExpenditure.String() != "250.5" {
		t.Errorf("totals = %s / %s", res.TotalIncome, res.TotalExpenditure)
	}

	st, err := f.svc.Get(ctx, res.StatementID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if st.Reference != res.Reference || st.ChecksumSHA256 == "" || !st.CreatedAt.Equal(fixedNow()) {
		t.Errorf("statement = %+v", st)
	}

	rows, _ := f.store.ListStatementTransactions(ctx, "biz-1")
	if len(rows) != 2 {
		t.Errorf("stored rows = %d, want 2", len(rows))
	}

	_, doc, err := f.svc.Document(ctx, res.StatementID)
	if err != nil || string(doc) != "statement text" {
		t.Errorf("Document() = %q, %v", doc, err)
	}

	for _, p := range f.extractor.paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("temp file %s still exists", p)
		}
	}
}

func TestService_IngestDuplicateDocument(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Ingest(ctx, request("same bytes"))
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	_, err = f.svc.Ingest(ctx, request("same bytes"))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second Ingest() error = %v, want conflict", err)
	}
	if apperr.Message(err) != "statement document already ingested as "+first.StatementID {
		t.Errorf("message = %q", apperr.Message(err))
	}
	if f.blobs.Len() != 1 {
		t.Errorf("blobs = %d, want 1", f.blobs.Len())
	}
}

func TestService_IngestFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		req       Request
		wrap      func(*inmemory.Store) Repository
		wantKind  apperr.Kind
		wantPaths int
	}{
		{
			name:     "unknown business",
			req:      Request{BusinessID: "nope", Filename: "a.txt", ContentType: "text/plain", Document: []byte("x")},
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "empty document",
			req:      request(""),
			wantKind: apperr.KindValidation,
		},
		{
			name: "extraction fails",
			setup: func(f *fixture) {
				f.extractor.ExtractTextFunc = func(context.Context, string, string) (string, error) {
					return "", errors.New("encrypted PDF")
				}
			},
			req:       request("x"),
			wantKind:  apperr.KindExtraction,
			wantPaths: 1,
		},
		{
			name: "transcription times out",
			setup: func(f *fixture) {
				f.extractor.ExtractTextFunc = func(context.Context, string, string) (string, error) {
					return "", apperr.Wrap(apperr.KindUpstream, "oracle.ExtractText", "document transcription timed out", context.DeadlineExceeded)
				}
			},
			req:       request("x"),
			wantKind:  apperr.KindUpstream,
			wantPaths: 1,
		},
		{
			name: "oracle fails",
			setup: func(f *fixture) {
				f.structurer.StructureFunc = func(context.Context, string) ([]oracle.Candidate, error) {
					return nil, errors.New("timeout")
				}
			},
			req:       request("x"),
			wantKind:  apperr.KindUpstream,
			wantPaths: 1,
		},
		{
			name: "nothing usable",
			setup: func(f *fixture) {
				f.structurer.StructureFunc = func(context.Context, string) ([]oracle.Candidate, error) {
					return []oracle.Candidate{{"date": "?", "amount": "?"}}, nil
				}
			},
			req:       request("x"),
			wantKind:  apperr.KindNoUsableRows,
			wantPaths: 1,
		},
		{
			name:      "commit fails",
			wrap:      func(s *inmemory.Store) Repository { return failingStatements{s} },
			req:       request("x"),
			wantKind:  apperr.KindPersistence,
			wantPaths: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.wrap)
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.svc.Ingest(context.Background(), tt.req)
			if got := apperr.KindOf(err); got != tt.wantKind {
				t.Fatalf("Ingest() kind = %s (%v), want %s", got, err, tt.wantKind)
			}
			if rows, _ := f.store.ListStatementTransactions(context.Background(), "biz-1"); len(rows) != 0 {
				t.Errorf("stored rows = %d, want 0", len(rows))
			}
			if f.blobs.Len() != 0 {
				t.Errorf("blobs = %d, want 0", f.blobs.Len())
			}
			if len(f.extractor.paths) != tt.wantPaths {
				t.Errorf("extractor calls = %d, want %d", len(f.extractor.paths), tt.wantPaths)
			}
			for _, p := range f.extractor.paths {
				if _, err := os.Stat(p); !os.IsNotExist(err) {
					t.Errorf("temp file %s still exists", p)
				}
			}
		})
	}
}

func TestService_DocumentNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, _, err := f.svc.Document(context.Background(), "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Document() error = %v, want not found", err)
	}
}

func TestPipeline_StopsAtFirstFailure(t *testing.T) {
	var ran []int
	step := func(n int, err error) Step {
		return stepFunc(func(ctx context.Context, s *State) error {
			ran = append(ran, n)
			return err
		})
	}

	err := NewPipeline(step(1, nil), step(2, errors.New("boom")), step(3, nil)).Execute(context.Background(), &State{})
	if err == nil || err.Error() != "pipeline step 2 failed: boom" {
		t.Errorf("Execute() error = %v", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran = %v, want steps 1 and 2", ran)
	}
}

type stepFunc func(ctx context.Context, s *State) error

func (f stepFunc) Execute(ctx context.Context, s *State) error { return f(ctx, s) }

func TestPreview(t *testing.T) {
	extractor := &mockExtractor{ExtractTextFunc: func(ctx context.Context, path, contentType string) (string, error) {
		return "01/03/2024 Card sale 120.00", nil
	}}
	structurer := &mockStructurer{StructureFunc: func(ctx context.Context, text string) ([]oracle.Candidate, error) {
		return []oracle.Candidate{
			{"date": "2024-03-01", "amount": "120.00", "description": "Card sale"},
			{"date": "not a date", "amount": "5"},
		}, nil
	}}

	state, err := Preview(context.Background(), extractor, structurer, zerolog.Nop(), "march.txt", "text/plain", []byte("raw"))
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(state.Rows) != 1 || len(state.Rejected) != 1 {
		t.Errorf("rows = %d, rejected = %d", len(state.Rows), len(state.Rejected))
	}
	if !state.Statement.TotalIncome.Equal(state.Rows[0].Amount) {
		t.Errorf("income = %s, want %s", state.Statement.TotalIncome, state.Rows[0].Amount)
	}
	if _, err := os.Stat(extractor.paths[0]); !os.IsNotExist(err) {
		t.Errorf("temp file %s left behind", extractor.paths[0])
	}
}

func TestPreview_NoUsableRows(t *testing.T) {
	extractor := &mockExtractor{ExtractTextFunc: func(ctx context.Context, path, contentType string) (string, error) {
		return "nothing useful", nil
	}}
	structurer := &mockStructurer{StructureFunc: func(ctx context.Context, text string) ([]oracle.Candidate, error) {
		return nil, nil
	}}

	_, err := Preview(context.Background(), extractor, structurer, zerolog.Nop(), "x.txt", "text/plain", []byte("raw"))
	if !apperr.Is(err, apperr.KindNoUsableRows) {
		t.Errorf("Preview() error = %v, want no usable rows", err)
	}
}
