package bigquery

import (
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/shopspring/decimal"
)

// Read-side rows. NUMERIC columns load into *big.Rat.

type businessRow struct {
	BusinessID         string              `bigquery:"business_id"`
	Name               string              `bigquery:"name"`
	RegistrationNumber bigquery.NullString `bigquery:"registration_number"`
	Industry           bigquery.NullString `bigquery:"industry"`
	Country            bigquery.NullString `bigquery:"country"`
	City               bigquery.NullString `bigquery:"city"`
	CreatedTS          time.Time           `bigquery:"created_ts"`
}

type transactionRow struct {
	TransactionID   string     `bigquery:"transaction_id"`
	BusinessID      string     `bigquery:"business_id"`
	TransactionDate civil.Date `bigquery:"transaction_date"`
	Description     string     `bigquery:"description"`
	Amount          *big.Rat   `bigquery:"amount"`
	Direction       string     `bigquery:"direction"`
	BalanceAfter    *big.Rat   `bigquery:"balance_after"`
	Reference       string     `bigquery:"reference"`
	CreatedTS       time.Time  `bigquery:"created_ts"`
}

type statementRow struct {
	StatementID      string              `bigquery:"statement_id"`
	BusinessID       string              `bigquery:"business_id"`
	Reference        string              `bigquery:"reference"`
	StartDate        civil.Date          `bigquery:"start_date"`
	EndDate          civil.Date          `bigquery:"end_date"`
	TotalIncome      *big.Rat            `bigquery:"total_income"`
	TotalExpenditure *big.Rat            `bigquery:"total_expenditure"`
	DocumentURI      bigquery.NullString `bigquery:"document_uri"`
	Filename         bigquery.NullString `bigquery:"filename"`
	ContentType      bigquery.NullString `bigquery:"content_type"`
	ChecksumSHA256   string              `bigquery:"checksum_sha256"`
	CreatedTS        time.Time           `bigquery:"created_ts"`
}

type statementTransactionRow struct {
	RowID           string              `bigquery:"row_id"`
	StatementID     string              `bigquery:"statement_id"`
	BusinessID      string              `bigquery:"business_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     bigquery.NullString `bigquery:"description"`
	Amount          *big.Rat            `bigquery:"amount"`
	Balance         *big.Rat            `bigquery:"balance"`
	TransactionType string              `bigquery:"transaction_type"`
	Channel         bigquery.NullString `bigquery:"channel"`
	Counterparty    bigquery.NullString `bigquery:"counterparty"`
}

type creditScoreRow struct {
	BusinessID string    `bigquery:"business_id"`
	Score      int64     `bigquery:"score"`
	RiskTier   string    `bigquery:"risk_tier"`
	Version    string    `bigquery:"version"`
	ComputedTS time.Time `bigquery:"computed_ts"`
}

type auditEntryRow struct {
	EntryID     string              `bigquery:"entry_id"`
	BusinessID  string              `bigquery:"business_id"`
	Score       int64               `bigquery:"score"`
	RiskTier    string              `bigquery:"risk_tier"`
	Version     string              `bigquery:"version"`
	EntryTS     time.Time           `bigquery:"entry_ts"`
	RequestedBy string              `bigquery:"requested_by"`
	StatementID bigquery.NullString `bigquery:"statement_id"`
}

// Write-side parameters. Amounts travel as strings and are CAST to NUMERIC
// in SQL so no precision is lost on the way.

type transactionParam struct {
	TransactionID   string              `bigquery:"transaction_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     string              `bigquery:"description"`
	Amount          string              `bigquery:"amount"`
	Direction       string              `bigquery:"direction"`
	BalanceAfter    bigquery.NullString `bigquery:"balance_after"`
	Reference       string              `bigquery:"reference"`
	CreatedTS       time.Time           `bigquery:"created_ts"`
}

type statementTransactionParam struct {
	RowID           string              `bigquery:"row_id"`
	TransactionDate civil.Date          `bigquery:"transaction_date"`
	Description     string              `bigquery:"description"`
	Amount          string              `bigquery:"amount"`
	Balance         bigquery.NullString `bigquery:"balance"`
	TransactionType string              `bigquery:"transaction_type"`
	Channel         string              `bigquery:"channel"`
	Counterparty    string              `bigquery:"counterparty"`
}

func ratToDecimal(r *big.Rat) (decimal.Decimal, error) {
	if r == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(r.FloatString(2))
}

func ratToDecimalPtr(r *big.Rat) (*decimal.Decimal, error) {
	if r == nil {
		return nil, nil
	}
	d, err := ratToDecimal(r)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) bigquery.NullString {
	if d == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: d.StringFixed(2), Valid: true}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func dateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

func timeOf(d civil.Date) time.Time {
	return d.In(time.UTC)
}

func (r businessRow) toDomain() *domain.Business {
	return &domain.Business{
		ID:                 r.BusinessID,
		Name:               r.Name,
		RegistrationNumber: r.RegistrationNumber.StringVal,
		Industry:           r.Industry.StringVal,
		Country:            r.Country.StringVal,
		City:               r.City.StringVal,
		CreatedAt:          r.CreatedTS,
	}
}

func toTransactionParam(tx domain.Transaction) transactionParam {
	return transactionParam{
		TransactionID:   tx.ID,
		TransactionDate: dateOf(tx.Date),
		Description:     tx.Description,
		Amount:          tx.Amount.StringFixed(2),
		Direction:       string(tx.Type),
		BalanceAfter:    nullDecimal(tx.BalanceAfter),
		Reference:       tx.Reference,
		CreatedTS:       tx.CreatedAt,
	}
}

func (r transactionRow) toDomain() (domain.Transaction, error) {
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s amount: %w", r.TransactionID, err)
	}
	balance, err := ratToDecimalPtr(r.BalanceAfter)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s balance: %w", r.TransactionID, err)
	}
	return domain.Transaction{
		ID:           r.TransactionID,
		BusinessID:   r.BusinessID,
		Date:         timeOf(r.TransactionDate),
		Description:  r.Description,
		Amount:       amount,
		Type:         domain.TransactionType(r.Direction),
		BalanceAfter: balance,
		Reference:    r.Reference,
		CreatedAt:    r.CreatedTS,
	}, nil
}

func (r statementRow) toDomain() (*domain.Statement, error) {
	income, err := ratToDecimal(r.TotalIncome)
	if err != nil {
		return nil, fmt.Errorf("statement %s income: %w", r.StatementID, err)
	}
	expenditure, err := ratToDecimal(r.TotalExpenditure)
	if err != nil {
		return nil, fmt.Errorf("statement %s expenditure: %w", r.StatementID, err)
	}
	return &domain.Statement{
		ID:               r.StatementID,
		BusinessID:       r.BusinessID,
		Reference:        r.Reference,
		StartDate:        timeOf(r.StartDate),
		EndDate:          timeOf(r.EndDate),
		TotalIncome:      income,
		TotalExpenditure: expenditure,
		DocumentURI:      r.DocumentURI.StringVal,
		Filename:         r.Filename.StringVal,
		ContentType:      r.ContentType.StringVal,
		ChecksumSHA256:   r.ChecksumSHA256,
		CreatedAt:        r.CreatedTS,
	}, nil
}

func toStatementTransactionParam(t domain.StatementTransaction) statementTransactionParam {
	return statementTransactionParam{
		RowID:           t.ID,
		TransactionDate: dateOf(t.Date),
		Description:     t.Description,
		Amount:          t.Amount.StringFixed(2),
		Balance:         nullDecimal(t.Balance),
		TransactionType: string(t.Type),
		Channel:         t.Channel,
		Counterparty:    t.Counterparty,
	}
}

func (r statementTransactionRow) toDomain() (domain.StatementTransaction, error) {
	amount, err := ratToDecimal(r.Amount)
	if err != nil {
		return domain.StatementTransaction{}, fmt.Errorf("statement row %s amount: %w", r.RowID, err)
	}
	balance, err := ratToDecimalPtr(r.Balance)
	if err != nil {
		return domain.StatementTransaction{}, fmt.Errorf("statement row %s balance: %w", r.RowID, err)
	}
	return domain.StatementTransaction{
		ID:           r.RowID,
		StatementID:  r.StatementID,
		BusinessID:   r.BusinessID,
		Date:         timeOf(r.TransactionDate),
		Description:  r.Description.StringVal,
		Amount:       amount,
		Balance:      balance,
		Type:         domain.TransactionType(r.TransactionType),
		Channel:      r.Channel.StringVal,
		Counterparty: r.Counterparty.StringVal,
	}, nil
}

func (r creditScoreRow) toDomain() *domain.CreditScore {
	return &domain.CreditScore{
		BusinessID: r.BusinessID,
		Score:      int(r.Score),
		RiskTier:   domain.RiskTier(r.RiskTier),
		Version:    r.Version,
		ComputedAt: r.ComputedTS,
	}
}

func (r auditEntryRow) toDomain() domain.ScoreAuditEntry {
	return domain.ScoreAuditEntry{
		ID:          r.EntryID,
		BusinessID:  r.BusinessID,
		Score:       int(r.Score),
		RiskTier:    domain.RiskTier(r.RiskTier),
		Version:     r.Version,
		Timestamp:   r.EntryTS,
		RequestedBy: r.RequestedBy,
		StatementID: r.StatementID.StringVal,
	}
}
