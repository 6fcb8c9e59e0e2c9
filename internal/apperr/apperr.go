// Package apperr defines the error taxonomy shared by the ingestion and
// scoring services. Transport layers map a Kind to their own status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of where it happened.
type Kind string

const (
	KindInternal     Kind = "internal"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindUpstream     Kind = "upstream"
	KindExtraction   Kind = "extraction"
	KindNoUsableRows Kind = "no_usable_rows"
	KindPersistence  Kind = "persistence"
)

// Error is a classified error. Op names the operation that failed, Msg is a
// caller-safe description and Err is the optional underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements Kinded.
func (e *Error) ErrorKind() Kind { return e.Kind }

// Kinded is implemented by errors that carry their own classification,
// such as aggregated batch validation failures.
type Kinded interface {
	error
	ErrorKind() Kind
}

// New returns a classified error without an underlying cause.
func New(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Newf is New with a formatted message.
func Newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf reports the classification of the outermost Kinded error in the
// chain, or KindInternal when there is none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message of the outermost classified error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Msg != "" {
			return e.Msg
		}
		if e.Err != nil {
			return e.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
