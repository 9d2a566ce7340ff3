package retry

import (
	"context"
	"time"

	"github.com/vvka-141/sqlport/pkg/sqlport"
)

// Executor runs an operation until it succeeds, fails fatally, or the
// backoff strategy runs out of attempts.
type Executor struct {
	classifier sqlport.ErrorClassifier
	strategy   sqlport.BackoffStrategy
	onRetry    func(attempt int, err error, delay time.Duration)
}

// NewExecutor creates a new retry executor.
// Panics if classifier or strategy is nil.
func NewExecutor(classifier sqlport.ErrorClassifier, strategy sqlport.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// NewDefaultExecutor creates an executor using the sqlport retry defaults.
func NewDefaultExecutor(classifier sqlport.ErrorClassifier) *Executor {
	return NewExecutor(classifier, NewExponentialBackoff(sqlport.DefaultRetryMaxAttempts,
		WithInitialDelay(sqlport.DefaultRetryInitialDelay),
		WithMaxDelay(sqlport.DefaultRetryMaxDelay),
	))
}

// WithOnRetry returns a copy of the executor that calls callback before
// each retry. The receiver is not modified.
func (e *Executor) WithOnRetry(callback func(attempt int, err error, delay time.Duration)) *Executor {
	clone := *e
	clone.onRetry = callback
	return &clone
}

// Execute runs operation, retrying transient failures.
// Returns the result of the last attempt.
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	err := operation(ctx)
	maxAttempts := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err); attempt++ {
		if maxAttempts >= 0 && attempt >= maxAttempts {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = operation(ctx)
	}
	return err
}

// Do is Execute for operations that produce a value.
func Do[T any](ctx context.Context, e *Executor, operation func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}
