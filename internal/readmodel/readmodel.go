// Package readmodel holds the query-side collaborators: the unique-value
// index the consistency layer consults, and the projection DTOs handlers
// return. The read model is maintained after commit and is therefore
// eventually consistent with the log; it is never the system of record.
package readmodel

import (
	"context"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
	"github.com/keyfold/keyfold/internal/es/uniq"
)

// Store is the unique-value index. Implementations live in the memory and
// redis subpackages.
type Store interface {
	uniq.Querier
	SetUnique(ctx context.Context, scope uniq.Scope, value string, id uuid.UUID) error
	DeleteUnique(ctx context.Context, scope uniq.Scope, value string) error
}

// Key renders the cache key for one (scope, value) pair.
func Key(scope uniq.Scope, value string) string {
	return "uniq:" + scope.String() + "=" + value
}

// IndexChange is one pending mutation of the unique-value index: claim a
// value for the holder, or release one the holder gave up.
type IndexChange struct {
	Claim   uniq.Claim
	Release bool
}

// ChangesOf collects the index mutations sitting in an aggregate's
// uncommitted buffer, in event order: a rename releases the old value before
// claiming the new one, so a value claimed and later released (or the
// reverse) nets out to its final state. Call it before Save clears the
// buffer; feed the result to Apply once the save succeeded.
func ChangesOf(agg es.Aggregate) []IndexChange {
	var out []IndexChange
	for _, env := range agg.Base().Uncommitted() {
		if r, ok := env.Payload.(uniq.Releaser); ok {
			for _, c := range r.UniqueReleases() {
				out = append(out, IndexChange{Claim: c, Release: true})
			}
		}
		if c, ok := env.Payload.(uniq.Claimer); ok {
			for _, claim := range c.UniqueClaims() {
				out = append(out, IndexChange{Claim: claim})
			}
		}
	}
	return out
}

// Apply replays committed index mutations under the given holder id.
func Apply(ctx context.Context, s Store, id uuid.UUID, changes []IndexChange) error {
	for _, ch := range changes {
		if ch.Release {
			if err := s.DeleteUnique(ctx, ch.Claim.Scope, ch.Claim.Value); err != nil {
				return err
			}
			continue
		}
		if err := s.SetUnique(ctx, ch.Claim.Scope, ch.Claim.Value, id); err != nil {
			return err
		}
	}
	return nil
}
