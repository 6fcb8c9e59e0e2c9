package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Statement is the header produced by one bank-statement ingestion.
type Statement struct {
	ID               string          `json:"id"`
	BusinessID       string          `json:"business_id"`
	Reference        string          `json:"reference"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenditure decimal.Decimal `json:"total_expenditure"`
	DocumentURI      string          `json:"document_uri"`
	Filename         string          `json:"filename"`
	ContentType      string          `json:"content_type"`
	ChecksumSHA256   string          `json:"checksum_sha256"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StatementTransaction is one coerced row of a statement. Amount is signed:
// positive for money in, negative for money out.
type StatementTransaction struct {
	ID           string           `json:"id"`
	StatementID  string           `json:"statement_id"`
	BusinessID   string           `json:"business_id"`
	Date         time.Time        `json:"date"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"`
	Balance      *decimal.Decimal `json:"balance,omitempty"`
	Type         TransactionType  `json:"transaction_type"`
	Channel      string           `json:"channel"`
	Counterparty string           `json:"counterparty"`
}

// HistoryRecord maps the signed amount onto a magnitude and direction.
func (t StatementTransaction) HistoryRecord() HistoryRecord {
	typ := Credit
	if t.Amount.IsNegative() {
		typ = Debit
	}
	return HistoryRecord{
		Date:    t.Date,
		Amount:  t.Amount.Abs(),
		Type:    typ,
		Balance: t.Balance,
	}
}
