package bulkupload

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dvloznov/creditscore/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// RequiredFields lists the mandatory record fields in the order missing
// fields are reported.
var RequiredFields = []string{"date", "description", "amount", "transaction_type", "reference"}

// RawRecord is one uploaded row before validation. Row is 1-based and
// Fields is keyed by lower-case column name.
type RawRecord struct {
	Row    int
	Fields map[string]string
}

// ValidRecord is a row that passed every field and cross-field check.
type ValidRecord struct {
	Row         int
	BusinessID  string
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Type        domain.TransactionType
	Balance     *decimal.Decimal
	Reference   string
}

type recordInput struct {
	Date            string `json:"date" validate:"required,datetime=2006-01-02,notfuture"`
	Description     string `json:"description" validate:"required"`
	Amount          string `json:"amount" validate:"required,decimal,positive,cents"`
	TransactionType string `json:"transaction_type" validate:"required,oneof=credit debit"`
	Reference       string `json:"reference" validate:"required,max=100"`
	Balance         string `json:"balance" validate:"omitempty,decimal,nonnegative,cents"`
}

// checkRank orders failures so each row reports its first one: missing
// fields in RequiredFields order, then type, amount, date, reference and
// balance checks.
var checkRank = map[string]int{
	"transaction_type": 10,
	"amount":           20,
	"date":             30,
	"reference":        40,
	"balance":          50,
}

// Validator checks raw records against the transaction rules.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewValidator returns a Validator whose future-date check uses now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}

	v.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.validate.RegisterValidation("decimal", isDecimal)
	_ = v.validate.RegisterValidation("positive", isPositive)
	_ = v.validate.RegisterValidation("nonnegative", isNonNegative)
	_ = v.validate.RegisterValidation("cents", hasAtMostCents)
	_ = v.validate.RegisterValidation("notfuture", v.notFuture)
	v.validate.RegisterStructValidation(debitWithinBalance, recordInput{})

	return v
}

// Validate checks one record and returns the first failure for it.
func (v *Validator) Validate(rec RawRecord) (ValidRecord, *RowError) {
	in := recordInput{
		Date:            field(rec, "date"),
		Description:     field(rec, "description"),
		Amount:          field(rec, "amount"),
		TransactionType: strings.ToLower(field(rec, "transaction_type")),
		Reference:       field(rec, "reference"),
		Balance:         field(rec, "balance"),
	}
	if in.Balance == "" {
		in.Balance = field(rec, "balance_after")
	}

	if err := v.validate.Struct(in); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok || len(fieldErrs) == 0 {
			return ValidRecord{}, &RowError{Row: rec.Row, Field: "record", Reason: err.Error()}
		}
		sort.SliceStable(fieldErrs, func(i, j int) bool {
			return rank(fieldErrs[i]) < rank(fieldErrs[j])
		})
		first := fieldErrs[0]
		return ValidRecord{}, &RowError{Row: rec.Row, Field: first.Field(), Reason: message(first)}
	}

	date, _ := time.Parse(dateLayout, in.Date)
	amount := decimal.RequireFromString(in.Amount)
	typ, _ := domain.ParseTransactionType(in.TransactionType)

	out := ValidRecord{
		Row:         rec.Row,
		BusinessID:  field(rec, "business_id"),
		Date:        date,
		Description: in.Description,
		Amount:      amount,
		Type:        typ,
		Reference:   in.Reference,
	}
	if in.Balance != "" {
		b := decimal.RequireFromString(in.Balance)
		out.Balance = &b
	}
	return out, nil
}

// ValidateAll validates every record. If any fails, it returns a
// *BatchError carrying all failures and no records.
func (v *Validator) ValidateAll(recs []RawRecord) ([]ValidRecord, error) {
	var errs *multierror.Error
	valid := make([]ValidRecord, 0, len(recs))

	for _, rec := range recs {
		out, rowErr := v.Validate(rec)
		if rowErr != nil {
			errs = multierror.Append(errs, rowErr)
			continue
		}
		valid = append(valid, out)
	}

	if errs != nil {
		return nil, newBatchError(errs)
	}
	return valid, nil
}

func field(rec RawRecord, name string) string {
	return strings.TrimSpace(rec.Fields[name])
}

func rank(fe validator.FieldError) int {
	if fe.Tag() == "required" {
		for i, name := range RequiredFields {
			if name == fe.Field() {
				return i
			}
		}
	}
	if fe.Tag() == "within_balance" {
		return 60
	}
	return checkRank[fe.Field()]
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("'%s' is required", fe.Field())
	case "oneof":
		return "transaction_type must be one of: credit, debit"
	case "decimal":
		return fmt.Sprintf("%s must be a valid number", fe.Field())
	case "positive":
		return "amount must be greater than zero"
	case "nonnegative":
		return "balance must not be negative"
	case "cents":
		return fmt.Sprintf("%s must have at most 2 decimal places", fe.Field())
	case "datetime":
		return "date must be in YYYY-MM-DD format"
	case "notfuture":
		return "date must not be in the future"
	case "max":
		return "reference must not exceed 100 characters"
	case "within_balance":
		return "debit amount must not exceed balance"
	default:
		return fmt.Sprintf("%s failed %s check", fe.Field(), fe.Tag())
	}
}

func isDecimal(fl validator.FieldLevel) bool {
	_, err := decimal.NewFromString(fl.Field().String())
	return err == nil
}

func isPositive(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

func isNonNegative(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && !d.IsNegative()
}

// hasAtMostCents rejects values that storage would round, such as 0.001.
func hasAtMostCents(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.Equal(d.Round(2))
}

func (v *Validator) notFuture(fl validator.FieldLevel) bool {
	d, err := time.Parse(dateLayout, fl.Field().String())
	if err != nil {
		return true
	}
	return !d.After(domain.CalendarDate(v.now()))
}

func debitWithinBalance(sl validator.StructLevel) {
	in := sl.Current().Interface().(recordInput)
	if in.TransactionType != string(domain.Debit) || in.Balance == "" {
		return
	}
	amount, err := decimal.NewFromString(in.Amount)
	if err != nil {
		return
	}
	balance, err := decimal.NewFromString(in.Balance)
	if err != nil {
		return
	}
	if amount.GreaterThan(balance) {
		sl.ReportError(in.Amount, "amount", "Amount", "within_balance", "")
	}
}
