// Package uniq enforces tenant-scoped uniqueness constraints (names, slugs,
// locales, emails) at save time, by checking pending events against a
// read-model index before they commit.
//
// The check is advisory: the index is eventually consistent with the log, so
// two writers racing within the replication window can still both pass. The
// stream-level optimistic append remains the last line of defense for a
// single stream; cross-stream duplicates within the window are accepted as a
// known limitation.
package uniq

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/keyfold/keyfold/internal/es"
)

// Scope names one unique constraint: a field key inside an optional tenant
// isolation boundary. A nil tenant scopes the constraint globally.
type Scope struct {
	Tenant *uuid.UUID
	Key    string // e.g. "role:name", "realm:slug", "language:locale"
}

// String renders the scope as a stable cache-key fragment.
func (s Scope) String() string {
	if s.Tenant != nil {
		return s.Key + "@" + s.Tenant.String()
	}
	return s.Key
}

// Claim is one unique value an event takes possession of.
type Claim struct {
	Scope Scope
	Value string
}

// Claimer is implemented by event payloads that claim unique values:
// creations and renames of uniquely keyed entities.
type Claimer interface {
	UniqueClaims() []Claim
}

// Releaser is implemented by event payloads that give values back: a rename
// frees the old value, a soft delete frees everything the aggregate held.
// The index entry must go away or the freed value stays locked forever.
type Releaser interface {
	UniqueReleases() []Claim
}

// Querier is the read-model lookup consulted before commit. It is never the
// system of record.
type Querier interface {
	// FindIDByUniqueValue returns the id currently holding value within
	// scope, or nil when the value is free.
	FindIDByUniqueValue(ctx context.Context, scope Scope, value string) (*uuid.UUID, error)
}

// ConflictError reports a unique value already held by another aggregate.
type ConflictError struct {
	Scope      Scope
	Value      string
	HolderID   uuid.UUID
	ClaimantID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique %s=%q already held by %s (claimed by %s)",
		e.Scope, e.Value, e.HolderID, e.ClaimantID)
}

// Guard wraps a repository's save with the uniqueness check. An aggregate
// re-claiming a value it already holds never conflicts with itself.
type Guard[T es.Aggregate] struct {
	repo *es.Repository[T]
	q    Querier
	idOf func(T) uuid.UUID
}

func NewGuard[T es.Aggregate](repo *es.Repository[T], q Querier, idOf func(T) uuid.UUID) *Guard[T] {
	return &Guard[T]{repo: repo, q: q, idOf: idOf}
}

// Save verifies every pending claim of every aggregate in the batch, then
// delegates to the repository. On conflict nothing is committed for the
// conflicting aggregate, and aggregates after it in the batch are not saved.
func (g *Guard[T]) Save(ctx context.Context, aggs ...T) error {
	for _, agg := range aggs {
		for _, env := range agg.Base().Uncommitted() {
			claimer, ok := env.Payload.(Claimer)
			if !ok {
				continue
			}
			for _, claim := range claimer.UniqueClaims() {
				holder, err := g.q.FindIDByUniqueValue(ctx, claim.Scope, claim.Value)
				if err != nil {
					return fmt.Errorf("uniqueness lookup %s: %w", claim.Scope, err)
				}
				if holder != nil && *holder != g.idOf(agg) {
					return &ConflictError{
						Scope:      claim.Scope,
						Value:      claim.Value,
						HolderID:   *holder,
						ClaimantID: g.idOf(agg),
					}
				}
			}
		}
		if err := g.repo.Save(ctx, agg); err != nil {
			return err
		}
	}
	return nil
}
