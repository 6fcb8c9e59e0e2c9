package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestTranslate(t *testing.T) {
	classified := apperr.New(apperr.KindValidation, "guard", "bad row")

	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"nil", nil, ""},
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), apperr.KindConflict},
		{"driver failure", errors.New("connection reset"), apperr.KindPersistence},
		{"already classified", classified, apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate("op", tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("translate(nil) = %v", got)
				}
				return
			}
			if k := apperr.KindOf(got); k != tt.want {
				t.Errorf("kind = %q, want %q", k, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("original error lost from chain")
			}
		})
	}
}

func TestTransactionRow_TruncatesDate(t *testing.T) {
	balance := decimal.RequireFromString("900.00")
	tx := domain.Transaction{
		ID:           "tx-1",
		BusinessID:   "biz-1",
		Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description:  "Invoice 12",
		Amount:       decimal.RequireFromString("100.00"),
		Type:         domain.Debit,
		BalanceAfter: &balance,
		Reference:    "INV-12",
	}

	row := toTransactionRow(tx)
	// Drivers hand dates back with a location attached.
	row.Date = time.Date(2024, 3, 5, 0, 0, 0, 0, time.FixedZone("db", 0))

	got := row.toDomain()
	if got.Date.Location() != time.UTC || !got.Date.Equal(tx.Date) {
		t.Errorf("Date = %v", got.Date)
	}
	if got.Type != domain.Debit || got.BalanceAfter == nil || !got.BalanceAfter.Equal(balance) {
		t.Errorf("got = %+v", got)
	}
}

func TestModels_TableNames(t *testing.T) {
	want := []string{"businesses", "transactions", "statements", "statement_transactions", "credit_scores", "score_audit_entries"}
	models := Models()
	if len(models) != len(want) {
		t.Fatalf("len(Models()) = %d, want %d", len(models), len(want))
	}
	for i, m := range models {
		tabler, ok := m.(interface{ TableName() string })
		if !ok {
			t.Fatalf("model %T has no TableName", m)
		}
		if tabler.TableName() != want[i] {
			t.Errorf("Models()[%d] = %s, want %s", i, tabler.TableName(), want[i])
		}
	}
}
