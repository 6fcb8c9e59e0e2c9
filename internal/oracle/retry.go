package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dvloznov/creditscore/internal/apperr"
	"github.com/rs/zerolog"
)

// ErrRetriesExhausted marks an upstream failure that already used the whole
// retry budget. Retrying it again at a higher level only multiplies calls.
var ErrRetriesExhausted = errors.New("oracle retry budget exhausted")

// RetryPolicy bounds calls to the model.
type RetryPolicy struct {
	Timeout        time.Duration // per attempt
	MaxAttempts    int
	InitialBackoff time.Duration
	// Budget caps all attempts and backoff together.
	Budget time.Duration
}

// DefaultRetryPolicy is 3 attempts of up to 25s each within 75s overall.
var DefaultRetryPolicy = RetryPolicy{
	Timeout:        25 * time.Second,
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	Budget:         75 * time.Second,
}

// RetryingStructurer wraps a Structurer with a per-attempt timeout and a
// fixed retry budget. When the budget is spent the last failure is returned
// as an upstream error.
type RetryingStructurer struct {
	next   Structurer
	policy RetryPolicy
	log    zerolog.Logger
}

// NewRetryingStructurer wraps next. Zero fields in policy take their
// DefaultRetryPolicy values.
func NewRetryingStructurer(next Structurer, policy RetryPolicy, log zerolog.Logger) *RetryingStructurer {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultRetryPolicy.Timeout
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = DefaultRetryPolicy.InitialBackoff
	}
	if policy.Budget <= 0 {
		policy.Budget = DefaultRetryPolicy.Budget
	}
	return &RetryingStructurer{next: next, policy: policy, log: log}
}

// Structure implements Structurer. It returns within policy.Budget.
func (r *RetryingStructurer) Structure(ctx context.Context, text string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.policy.Budget)
	defer cancel()

	var (
		out     []Candidate
		attempt int
	)

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		defer cancel()

		candidates, err := r.next.Structure(attemptCtx, text)
		if err != nil {
			r.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", r.policy.MaxAttempts).
				Msg("Structuring attempt failed")
			return err
		}
		out = candidates
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.policy.InitialBackoff
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(r.policy.MaxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "oracle.Structure",
			fmt.Sprintf("statement structuring failed after %d attempt(s)", attempt),
			fmt.Errorf("%w: %w", ErrRetriesExhausted, err))
	}
	return out, nil
}

// BoundedExtractor limits one extraction call to Timeout. A call that runs
// out of time is an upstream error, not a problem with the document.
type BoundedExtractor struct {
	Next    TextExtractor
	Timeout time.Duration
}

// NewBoundedExtractor wraps next. A zero timeout uses DefaultRetryPolicy.Timeout.
func NewBoundedExtractor(next TextExtractor, timeout time.Duration) *BoundedExtractor {
	if timeout <= 0 {
		timeout = DefaultRetryPolicy.Timeout
	}
	return &BoundedExtractor{Next: next, Timeout: timeout}
}

// ExtractText implements TextExtractor.
func (b *BoundedExtractor) ExtractText(ctx context.Context, path, contentType string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	text, err := b.Next.ExtractText(callCtx, path, contentType)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return "", apperr.Wrap(apperr.KindUpstream, "oracle.ExtractText",
			fmt.Sprintf("document transcription timed out after %s", b.Timeout), err)
	}
	return text, err
}

var (
	_ Structurer    = (*RetryingStructurer)(nil)
	_ TextExtractor = (*BoundedExtractor)(nil)
)
