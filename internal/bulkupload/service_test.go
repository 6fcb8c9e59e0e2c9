package bulkupload

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/lock"
	"github.com/dvloznov/creditscore/internal/store/inmemory"
	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*Service, *inmemory.Store) {
	t.Helper()
	st := inmemory.NewStore()
	if err := st.CreateBusiness(context.Background(), &domain.Business{ID: "biz-1", Name: "Acme"}); err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	return NewService(st, lock.NewKeyedMutex(), zerolog.Nop(), testNow), st
}

func TestService_Upload(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	res, err := svc.Upload(ctx, "biz-1", []RawRecord{validRec(1, "R1"), validRec(2, "R2")})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Created != 2 || len(res.Transactions) != 2 {
		t.Fatalf("Upload() = %+v, want 2 created", res)
	}
	for _, tx := range res.Transactions {
		if tx.ID == "" || tx.BusinessID != "biz-1" {
			t.Errorf("transaction = %+v, want id and business set", tx)
		}
	}

	stored, _ := st.ListTransactions(ctx, "biz-1")
	if len(stored) != 2 {
		t.Errorf("stored = %d, want 2", len(stored))
	}
}

func TestService_UploadIsAllOrNothing(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "biz-1", []RawRecord{
		validRec(1, "R1"),
		rec(2, "date", "2024-01-01", "description", "x", "amount", "-5", "transaction_type", "credit", "reference", "R2"),
	})

	var batch *BatchError
	if !errors.As(err, &batch) {
		t.Fatalf("Upload() error = %v, want *BatchError", err)
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("KindOf = %s, want validation", apperr.KindOf(err))
	}
	if stored, _ := st.ListTransactions(ctx, "biz-1"); len(stored) != 0 {
		t.Errorf("stored = %d, want nothing written", len(stored))
	}
}

func TestService_UploadRejectsExistingReference(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, "biz-1", []RawRecord{validRec(1, "R1")}); err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}

	second := []RawRecord{
		rec(1, "date", "2024-02-01", "description", "new", "amount", "7", "transaction_type", "credit", "reference", "R9"),
		rec(2, "date", "2024-02-02", "description", "again", "amount", "8", "transaction_type", "credit", "reference", "R1"),
	}
	_, err := svc.Upload(ctx, "biz-1", second)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("second Upload() error = %v, want conflict", err)
	}
	if !strings.Contains(err.Error(), `"R1"`) {
		t.Errorf("error = %q, want it to name R1", err)
	}
	if stored, _ := st.ListTransactions(ctx, "biz-1"); len(stored) != 1 {
		t.Errorf("stored = %d, want only the first batch", len(stored))
	}
}

func TestService_UploadInBatchDuplicate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "biz-1", []RawRecord{validRec(1, "R1"), validRec(2, "R1")})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Upload() error = %v, want conflict", err)
	}
}

func TestService_UploadUnknownBusiness(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "nope", []RawRecord{validRec(1, "R1")})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Upload() error = %v, want not found", err)
	}
}

func TestService_UploadFileCSV(t *testing.T) {
	svc, _ := newTestService(t)

	csv := "date,description,amount,transaction_type,reference,balance\n" +
		"2024-03-01,Sale,250.00,credit,INV-1,1250.00\n" +
		"2024-03-02,Supplier,50.00,debit,PAY-1,1200.00\n"

	res, err := svc.UploadFile(context.Background(), "biz-1", "march.csv", "text/csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if res.Created != 2 {
		t.Fatalf("Created = %d, want 2", res.Created)
	}
	if res.Transactions[1].Type != domain.Debit || res.Transactions[1].BalanceAfter == nil {
		t.Errorf("second transaction = %+v", res.Transactions[1])
	}
}

func TestService_ListTransactions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ListTransactions(ctx, "missing"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("ListTransactions(missing) error = %v, want not found", err)
	}
	if _, err := svc.Upload(ctx, "biz-1", []RawRecord{validRec(1, "R1")}); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	txs, err := svc.ListTransactions(ctx, "biz-1")
	if err != nil || len(txs) != 1 {
		t.Errorf("ListTransactions() = %d, %v", len(txs), err)
	}
}
