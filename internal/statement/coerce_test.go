package statement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/dvloznov/creditscore/internal/oracle"
	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		in      any
		want    time.Time
		wantErr bool
	}{
		{in: "2024-03-05", want: date(2024, 3, 5)},
		{in: "2024-03-05T23:30:00+01:00", want: date(2024, 3, 5)},
		{in: "2024/03/05", want: date(2024, 3, 5)},
		{in: "05/03/2024", want: date(2024, 3, 5)},
		{in: "05-03-2024", want: date(2024, 3, 5)},
		{in: "05 Mar 2024", want: date(2024, 3, 5)},
		{in: "Mar 5, 2024", want: date(2024, 3, 5)},
		{in: "05-Mar-2024", want: date(2024, 3, 5)},
		{in: " 2024-03-05 ", want: date(2024, 3, 5)},
		{in: "yesterday", wantErr: true},
		{in: "", wantErr: true},
		{in: nil, wantErr: true},
		{in: json.Number("20240305"), wantErr: true},
	}

	for _, tt := range tests {
		got, err := CoerceDate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CoerceDate(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("CoerceDate(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCoerceDecimal(t *testing.T) {
	tests := []struct {
		in      any
		want    string
		wantErr bool
	}{
		{in: json.Number("1200.50"), want: "1200.5"},
		{in: 12.345, want: "12.34"},
		{in: 12.355, want: "12.36"},
		{in: 7, want: "7"},
		{in: "£1,250.00", want: "1250"},
		{in: "-$40", want: "-40"},
		{in: "(99.99)", want: "-99.99"},
		{in: "NGN 5,000", want: "5000"},
		{in: "ten", wantErr: true},
		{in: nil, wantErr: true},
		{in: true, wantErr: true},
	}

	for _, tt := range tests {
		got, err := CoerceDecimal(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("CoerceDecimal(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got.String() != tt.want {
			t.Errorf("CoerceDecimal(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCoerce(t *testing.T) {
	candidates := []oracle.Candidate{
		{"date": "2024-01-10", "amount": json.Number("500.00"), "balance": json.Number("1500"), "description": " Sale ", "transaction_type": "CREDIT"},
		{"date": "not a date", "amount": json.Number("1")},
		{"date": "2024-01-11", "amount": "-20", "balance": "lots"},
		{"date": "2024-01-12", "amount": json.Number("-30"), "balance": nil, "transaction_type": "refund", "channel": "card", "counterparty": "Shell"},
		nil,
		{"date": "2024-01-13", "amount": "0.00", "description": "Balance brought forward"},
	}

	rows, rejected := Coerce("biz-1", "st-1", candidates)

	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	wantRejected := []int{1, 2, 4, 5}
	if len(rejected) != len(wantRejected) {
		t.Fatalf("rejected = %+v, want indexes %v", rejected, wantRejected)
	}
	for i, idx := range wantRejected {
		if rejected[i].Index != idx {
			t.Errorf("rejected[%d].Index = %d, want %d", i, rejected[i].Index, idx)
		}
	}

	first := rows[0]
	if first.Description != "Sale" || first.Type != domain.Credit || first.Balance == nil || !first.Balance.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("rows[0] = %+v", first)
	}
	if first.BusinessID != "biz-1" || first.StatementID != "st-1" || first.ID == "" {
		t.Errorf("rows[0] ids = %q %q %q", first.ID, first.BusinessID, first.StatementID)
	}

	second := rows[1]
	if second.Balance != nil {
		t.Errorf("rows[1].Balance = %v, want nil", second.Balance)
	}
	if second.Type != domain.Credit {
		t.Errorf("rows[1].Type = %q, want credit default", second.Type)
	}
	if second.Channel != "card" || second.Counterparty != "Shell" {
		t.Errorf("rows[1] = %+v", second)
	}
}

func TestAggregate(t *testing.T) {
	rows := []domain.StatementTransaction{
		{Date: date(2024, 2, 3), Amount: decimal.RequireFromString("100.005")},
		{Date: date(2024, 1, 31), Amount: decimal.RequireFromString("-40.10")},
		{Date: date(2024, 2, 28), Amount: decimal.RequireFromString("250")},
		{Date: date(2024, 2, 10), Amount: decimal.RequireFromString("-9.90")},
		{Date: date(2024, 2, 11), Amount: decimal.Zero},
	}

	start, end, income, expenditure := Aggregate(rows)

	if !start.Equal(date(2024, 1, 31)) || !end.Equal(date(2024, 2, 28)) {
		t.Errorf("span = %s..%s", start, end)
	}
	if income.String() != "350" {
		t.Errorf("income = %s, want 350", income)
	}
	if expenditure.String() != "50" {
		t.Errorf("expenditure = %s, want 50", expenditure)
	}
}

func TestReferenceFor(t *testing.T) {
	if got := ReferenceFor("3f2a9c1e-8b7d-4e6f-a1b2-c3d4e5f60718"); got != "STMT-3F2A9C1E" {
		t.Errorf("ReferenceFor() = %q", got)
	}
}
