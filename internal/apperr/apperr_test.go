package apperr

import (
	"errors"
	"fmt"
	"testing"
)

type batchErr struct{}

func (batchErr) Error() string   { return "2 rows failed" }
func (batchErr) ErrorKind() Kind { return KindValidation }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", errors.New("boom"), KindInternal},
		{"classified", New(KindNotFound, "GetBusiness", "business not found"), KindNotFound},
		{"wrapped by fmt", fmt.Errorf("pipeline step 3 failed: %w", New(KindUpstream, "Structure", "timeout")), KindUpstream},
		{"custom kinded", fmt.Errorf("upload: %w", batchErr{}), KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(KindPersistence, "op", "msg", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindPersistence, "SaveScore", "saving score", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped error to match cause")
	}
	if got, want := err.Error(), "SaveScore: saving score: connection reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := Message(err); got != "saving score" {
		t.Errorf("Message() = %q, want %q", got, "saving score")
	}
}
