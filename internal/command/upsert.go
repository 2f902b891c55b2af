package command

import (
	"context"
	"errors"

	"github.com/keyfold/keyfold/internal/es"
)

// Upsert drives the create-or-replace reconciliation every replace command
// shares: resolve the target aggregate (creating it when absent), pick the
// reference snapshot the payload is diffed against, stage the minimal set of
// changes, flush them as one consolidated event and persist.
type Upsert[T es.Aggregate] struct {
	// Load fetches the current aggregate for the requested id.
	Load func(ctx context.Context) (T, error)
	// LoadAt fetches the historical snapshot at the pinned version.
	LoadAt func(ctx context.Context, version int64) (T, error)
	// Create runs the type's constructor with the payload's mandatory fields.
	Create func() (T, error)
	// Stage diffs the payload against reference, staging changes on target.
	Stage func(target, reference T) error
	// Flush raises the consolidated update event (no-op when nothing staged).
	Flush func(target T) bool
	// Save persists through the repository or consistency guard.
	Save func(ctx context.Context, target T) error
}

// Run executes the reconciliation. created reports whether this call brought
// the aggregate into existence.
//
// A request without an id always creates, even when the payload duplicates
// an existing aggregate's fields. A version-pinned request against an id
// that never existed resolves to es.ErrNotFound without creating anything:
// the caller expected to replace something specific. When the pinned
// historical version cannot be located the current state serves as the
// reference instead.
func (u Upsert[T]) Run(ctx context.Context, hasID bool, expected *int64) (T, bool, error) {
	var zero, target T
	created := false

	switch {
	case !hasID:
		t, err := u.Create()
		if err != nil {
			return zero, false, err
		}
		target, created = t, true
	default:
		t, err := u.Load(ctx)
		switch {
		case errors.Is(err, es.ErrNotFound):
			if expected != nil {
				return zero, false, err
			}
			t, err = u.Create()
			if err != nil {
				return zero, false, err
			}
			target, created = t, true
		case err != nil:
			return zero, false, err
		default:
			target = t
		}
	}

	reference := target
	if expected != nil && !created {
		ref, err := u.LoadAt(ctx, *expected)
		switch {
		case errors.Is(err, es.ErrNotFound):
			// Exact version gone; diff against current state.
		case err != nil:
			return zero, false, err
		default:
			reference = ref
		}
	}

	if err := u.Stage(target, reference); err != nil {
		return zero, false, err
	}
	u.Flush(target)
	if err := u.Save(ctx, target); err != nil {
		return zero, false, err
	}
	return target, created, nil
}
