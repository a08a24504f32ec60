// Package strategy runs an ordered list of alternatives until one plausibly succeeds.
package strategy

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned when no step produced an accepted result.
var ErrExhausted = errors.New("all strategies exhausted")

// Step is one named alternative.
type Step[T any] struct {
	Name string
	Do   func(ctx context.Context) (T, error)
}

// First executes steps in order and returns the first result accepted by the
// predicate together with the name of the step that produced it. Steps after
// the accepted one are never invoked. A step error counts as a failed step.
func First[T any](ctx context.Context, steps []Step[T], accept func(T) bool) (T, string, error) {
	var (
		zero    T
		lastErr error
	)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		result, err := step.Do(ctx)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", step.Name, err)
			continue
		}
		if accept == nil || accept(result) {
			return result, step.Name, nil
		}
		lastErr = fmt.Errorf("%s: result rejected", step.Name)
	}

	if lastErr != nil {
		return zero, "", fmt.Errorf("%w: %w", ErrExhausted, lastErr)
	}
	return zero, "", ErrExhausted
}
