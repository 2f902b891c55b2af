package es

import (
	"context"
	"errors"
	"fmt"
)

// Log is the append-only event store the repository runs on. Implementations
// live under internal/eventlog.
type Log interface {
	// Append writes recs at the end of the stream. It must be atomic per
	// call and fail with ErrVersionConflict when the stream holds more than
	// expected events already.
	Append(ctx context.Context, addr StreamAddress, expected int64, recs []Record) error

	// Read returns the stream's records in order. upTo limits the result to
	// the first upTo events; upTo <= 0 means the whole stream. An unknown
	// address yields ErrNotFound.
	Read(ctx context.Context, addr StreamAddress, upTo int64) ([]Record, error)
}

// Factory allocates a blank aggregate bound to addr, ready for replay.
type Factory[T Aggregate] func(addr StreamAddress) T

// Repository loads and saves one aggregate type over an injected Log.
type Repository[T Aggregate] struct {
	log   Log
	codec Codec
	blank Factory[T]
}

func NewRepository[T Aggregate](log Log, codec Codec, blank Factory[T]) *Repository[T] {
	return &Repository[T]{log: log, codec: codec, blank: blank}
}

// Load replays the full stream at addr into a fresh aggregate instance.
func (r *Repository[T]) Load(ctx context.Context, addr StreamAddress) (T, error) {
	return r.loadUpTo(ctx, addr, 0)
}

// LoadAt replays the stream only up to the given version, yielding the
// historical state. The same records drive Load and LoadAt, so a reference
// snapshot can never disagree with the live aggregate about what an event
// meant. Asking for a version the stream never reached yields ErrNotFound.
func (r *Repository[T]) LoadAt(ctx context.Context, addr StreamAddress, version int64) (T, error) {
	var zero T
	if version < 1 {
		return zero, fmt.Errorf("load %s at version %d: %w", addr, version, ErrNotFound)
	}
	agg, err := r.loadUpTo(ctx, addr, version)
	if err != nil {
		return zero, err
	}
	if agg.Base().Version() != version {
		return zero, fmt.Errorf("load %s at version %d: %w", addr, version, ErrNotFound)
	}
	return agg, nil
}

// LoadMany loads each address, silently skipping streams that do not exist.
func (r *Repository[T]) LoadMany(ctx context.Context, addrs []StreamAddress) ([]T, error) {
	out := make([]T, 0, len(addrs))
	for _, addr := range addrs {
		agg, err := r.Load(ctx, addr)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, nil
}

// Save appends each aggregate's uncommitted events, guarded by the version
// the aggregate was loaded at. Aggregates with an empty buffer are skipped.
//
// The batch is best-effort, not transactional: a failure leaves aggregates
// earlier in the batch committed. Callers needing stronger guarantees must
// keep their event handlers idempotent.
func (r *Repository[T]) Save(ctx context.Context, aggs ...T) error {
	for _, agg := range aggs {
		base := agg.Base()
		pending := base.Uncommitted()
		if len(pending) == 0 {
			continue
		}
		recs := make([]Record, len(pending))
		for i, env := range pending {
			data, err := r.codec.Encode(env.Payload)
			if err != nil {
				return fmt.Errorf("encode %q: %w", env.Payload.Kind(), err)
			}
			recs[i] = Record{
				Address: base.Address(),
				Seq:     base.Version() + int64(i) + 1,
				Kind:    env.Payload.Kind(),
				Data:    data,
				Actor:   env.Actor,
				At:      env.At,
			}
		}
		if err := r.log.Append(ctx, base.Address(), base.Version(), recs); err != nil {
			return fmt.Errorf("append %s: %w", base.Address(), err)
		}
		base.commit()
	}
	return nil
}

func (r *Repository[T]) loadUpTo(ctx context.Context, addr StreamAddress, upTo int64) (T, error) {
	var zero T
	recs, err := r.log.Read(ctx, addr, upTo)
	if err != nil {
		return zero, err
	}
	if len(recs) == 0 {
		return zero, fmt.Errorf("load %s: %w", addr, ErrNotFound)
	}
	agg := r.blank(addr)
	for _, rec := range recs {
		p, err := r.codec.Decode(rec.Kind, rec.Data)
		if err != nil {
			return zero, fmt.Errorf("replay %s seq %d: %w", addr, rec.Seq, err)
		}
		replay(agg, Envelope{Payload: p, Actor: rec.Actor, At: rec.At})
	}
	return agg, nil
}
