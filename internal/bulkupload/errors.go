package bulkupload

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/hashicorp/go-multierror"
)

// RowError is a validation failure of one uploaded row. Row is 1-based.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Reason string `json:"error"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// BatchError collects every row that failed validation. A batch with any
// failed row is rejected as a whole.
type BatchError struct {
	errs *multierror.Error
}

func newBatchError(errs *multierror.Error) *BatchError {
	errs.ErrorFormat = func(es []error) string {
		lines := make([]string, 0, len(es))
		for _, e := range es {
			lines = append(lines, e.Error())
		}
		return fmt.Sprintf("%d invalid row(s): %s", len(es), strings.Join(lines, "; "))
	}
	return &BatchError{errs: errs}
}

func (e *BatchError) Error() string { return e.errs.Error() }

// ErrorKind implements apperr.Kinded.
func (e *BatchError) ErrorKind() apperr.Kind { return apperr.KindValidation }

// Rows returns the individual row failures in input order.
func (e *BatchError) Rows() []RowError {
	out := make([]RowError, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		var re *RowError
		if errors.As(err, &re) {
			out = append(out, *re)
		}
	}
	return out
}
