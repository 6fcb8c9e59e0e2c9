package bigquery

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_businesses.sql", true, 1, "create_businesses"},
		{"0012_add_index.sql", true, 12, "add_index"},
		{"001_invalid.sql", false, 0, ""},
		{"0001_test", false, 0, ""},
		{"0001.sql", false, 0, ""},
		{"invalid_0001_test.sql", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := ParseMigrationFilename(tt.filename)
			if ok != tt.valid || version != tt.version || name != tt.name {
				t.Errorf("ParseMigrationFilename(%q) = %d, %q, %v; want %d, %q, %v",
					tt.filename, version, name, ok, tt.version, tt.name, tt.valid)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"0002_scores.sql":     "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.credit_scores` (x INT64);",
		"0001_businesses.sql": "CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.businesses` (x INT64);",
		"README.md":           "not a migration",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	migrations, err := ReadMigrations(dir, "proj", "ds", zerolog.Nop())
	if err != nil {
		t.Fatalf("ReadMigrations() error = %v", err)
	}
	if len(migrations) != 2 || migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Fatalf("migrations = %+v", migrations)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.ds.businesses`") {
		t.Errorf("placeholders not replaced: %s", migrations[0].SQL)
	}

	// Same file against another dataset keeps its checksum.
	other, err := ReadMigrations(dir, "proj2", "ds2", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if other[0].Checksum != migrations[0].Checksum {
		t.Error("checksum depends on target dataset")
	}
	if migrations[0].Checksum == migrations[1].Checksum {
		t.Error("different files share a checksum")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"reference raise", errors.New("job error: " + duplicateReferenceMsg + " at [12:5]"), apperr.KindConflict},
		{"statement raise", errors.New(duplicateStatementMsg), apperr.KindConflict},
		{"business raise", errors.New(duplicateBusinessMsg), apperr.KindConflict},
		{"other", errors.New("quota exceeded"), apperr.KindPersistence},
		{"classified", apperr.New(apperr.KindValidation, "guard", "bad"), apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.KindOf(classify("op", tt.err)); got != tt.want {
				t.Errorf("kind = %q, want %q", got, tt.want)
			}
		})
	}
	if classify("op", nil) != nil {
		t.Error("classify(nil) != nil")
	}
}

func TestTransactionRowToDomain(t *testing.T) {
	row := transactionRow{
		TransactionID:   "tx-1",
		BusinessID:      "biz-1",
		TransactionDate: civil.Date{Year: 2024, Month: time.February, Day: 29},
		Description:     "Rent",
		Amount:          big.NewRat(123456, 100),
		Direction:       "debit",
		Reference:       "R-1",
	}

	got, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Date.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v", got.Date)
	}
	if !got.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("Amount = %s", got.Amount)
	}
	if got.BalanceAfter != nil {
		t.Errorf("BalanceAfter = %v, want nil", got.BalanceAfter)
	}
	if got.Type != domain.Debit {
		t.Errorf("Type = %s", got.Type)
	}
}

func TestToTransactionParam(t *testing.T) {
	balance := decimal.RequireFromString("50")
	p := toTransactionParam(domain.Transaction{
		ID:           "tx-1",
		Date:         time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("10.5"),
		Type:         domain.Credit,
		BalanceAfter: &balance,
	})
	if p.Amount != "10.50" || !p.BalanceAfter.Valid || p.BalanceAfter.StringVal != "50.00" {
		t.Errorf("param = %+v", p)
	}
	if p.TransactionDate != (civil.Date{Year: 2024, Month: time.January, Day: 2}) {
		t.Errorf("TransactionDate = %v", p.TransactionDate)
	}

	p = toTransactionParam(domain.Transaction{Amount: decimal.NewFromInt(1)})
	if p.BalanceAfter.Valid {
		t.Error("nil balance should be NULL")
	}
}

func TestTransactionalWrapsBody(t *testing.T) {
	script := transactional("  SELECT 1;")
	for _, want := range []string{"BEGIN TRANSACTION;", "SELECT 1;", "COMMIT TRANSACTION;", "ROLLBACK TRANSACTION;"} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if strings.Index(script, "SELECT 1;") > strings.Index(script, "COMMIT TRANSACTION;") {
		t.Error("body after commit")
	}
}
