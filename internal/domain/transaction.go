package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money movement.
type TransactionType string

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

// ParseTransactionType accepts credit or debit in any letter case.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Credit:
		return Credit, true
	case Debit:
		return Debit, true
	}
	return "", false
}

// Transaction is one validated ledger entry from a bulk upload.
// Amount is always positive; Type carries the direction.
type Transaction struct {
	ID           string           `json:"id"`
	BusinessID   string           `json:"business_id"`
	Date         time.Time        `json:"date"`
	Description  string           `json:"description"`
	Amount       decimal.Decimal  `json:"amount"`
	Type         TransactionType  `json:"transaction_type"`
	BalanceAfter *decimal.Decimal `json:"balance_after,omitempty"`
	Reference    string           `json:"reference"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HistoryRecord converts the transaction into the view the scoring engine
// consumes.
func (t Transaction) HistoryRecord() HistoryRecord {
	return HistoryRecord{
		Date:    t.Date,
		Amount:  t.Amount,
		Type:    t.Type,
		Balance: t.BalanceAfter,
	}
}

// HistoryRecord is a source-agnostic transaction: a calendar date, a
// non-negative magnitude, a direction and an optional running balance.
type HistoryRecord struct {
	Date    time.Time
	Amount  decimal.Decimal
	Type    TransactionType
	Balance *decimal.Decimal
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
