package statement

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order. Numeric layouts are day-first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
}

// Rejected records a candidate row that could not be coerced.
type Rejected struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Coerce turns untrusted candidates into typed statement rows. A candidate
// whose date or amount cannot be read, or whose balance is present but
// unreadable, is rejected; the rest of the document is unaffected.
func Coerce(businessID, statementID string, candidates []oracle.Candidate) ([]domain.StatementTransaction, []Rejected) {
	rows := make([]domain.StatementTransaction, 0, len(candidates))
	var rejected []Rejected

	for i, c := range candidates {
		row, err := coerceRow(c)
		if err != nil {
			rejected = append(rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		row.ID = uuid.NewString()
		row.StatementID = statementID
		row.BusinessID = businessID
		rows = append(rows, row)
	}
	return rows, rejected
}

func coerceRow(c oracle.Candidate) (domain.StatementTransaction, error) {
	var row domain.StatementTransaction

	if c == nil {
		return row, fmt.Errorf("candidate is not an object")
	}

	date, err := CoerceDate(c["date"])
	if err != nil {
		return row, fmt.Errorf("date: %w", err)
	}
	amount, err := CoerceDecimal(c["amount"])
	if err != nil {
		return row, fmt.Errorf("amount: %w", err)
	}
	if amount.IsZero() {
		return row, fmt.Errorf("amount: zero is not a movement")
	}

	if raw, ok := c["balance"]; ok && !isEmpty(raw) {
		balance, err := CoerceDecimal(raw)
		if err != nil {
			return row, fmt.Errorf("balance: %w", err)
		}
		row.Balance = &balance
	}

	row.Date = date
	row.Amount = amount
	row.Description = stringField(c, "description")
	row.Channel = stringField(c, "channel")
	row.Counterparty = stringField(c, "counterparty")

	row.Type = domain.Credit
	if typ, ok := domain.ParseTransactionType(stringField(c, "transaction_type")); ok {
		row.Type = typ
	}
	return row, nil
}

// CoerceDate reads a calendar date from a string in any accepted layout.
func CoerceDate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return time.Time{}, fmt.Errorf("missing")
		}
		return time.Time{}, fmt.Errorf("has type %T, want string", v)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.CalendarDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// CoerceDecimal reads a money value from a JSON number or numeric string,
// rounded half-even to 2 places. Strings may carry thousands separators, a
// leading currency symbol or accounting parentheses for negatives.
func CoerceDecimal(v any) (decimal.Decimal, error) {
	var (
		d   decimal.Decimal
		err error
	)

	switch val := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("missing")
	case json.Number:
		d, err = decimal.NewFromString(val.String())
	case float64:
		d = decimal.NewFromFloat(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case string:
		d, err = parseMoneyString(val)
	default:
		return decimal.Zero, fmt.Errorf("has type %T, want number", v)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %v", v)
	}
	return d.RoundBank(2), nil
}

func parseMoneyString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}

	s = strings.TrimLeft(s, "£$€₦¥ ")
	for _, code := range []string{"GBP", "USD", "EUR", "NGN"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, code))
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func stringField(c oracle.Candidate, key string) string {
	switch val := c[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// Aggregate summarises accepted rows: the date span plus total income and
// total expenditure, each rounded half-even to 2 places. rows must not be
// empty.
func Aggregate(rows []domain.StatementTransaction) (start, end time.Time, income, expenditure decimal.Decimal) {
	income, expenditure = decimal.Zero, decimal.Zero
	for i, r := range rows {
		if i == 0 || r.Date.Before(start) {
			start = r.Date
		}
		if i == 0 || r.Date.After(end) {
			end = r.Date
		}
		if r.Amount.IsPositive() {
			income = income.Add(r.Amount)
		} else if r.Amount.IsNegative() {
			expenditure = expenditure.Add(r.Amount)
		}
	}
	return start, end, income.RoundBank(2), expenditure.Abs().RoundBank(2)
}
