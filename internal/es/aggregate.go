package es

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate is implemented by every event-sourced entity. State only mutates
// through Apply, driven either by Raise (new events) or by stream replay, so
// the in-memory state and the replayed state can never disagree.
type Aggregate interface {
	Base() *Root
	// Apply is the total reducer: it folds one event into in-memory state.
	// It must not validate; all guards run before the event is raised.
	Apply(env Envelope)
}

// Root carries the bookkeeping shared by all aggregates: stream identity,
// committed version, audit metadata, the soft-delete flag and the buffer of
// events raised but not yet persisted. Embed it by value.
type Root struct {
	addr      StreamAddress
	version   int64
	createdBy *uuid.UUID
	createdOn time.Time
	updatedBy *uuid.UUID
	updatedOn time.Time
	deleted   bool
	pending   []Envelope
}

func NewRoot(addr StreamAddress) Root { return Root{addr: addr} }

func (r *Root) Base() *Root            { return r }
func (r *Root) Address() StreamAddress { return r.addr }

// Version is the count of events committed to the stream. Events raised but
// not yet saved do not count.
func (r *Root) Version() int64 { return r.version }

func (r *Root) Deleted() bool         { return r.deleted }
func (r *Root) CreatedBy() *uuid.UUID { return r.createdBy }
func (r *Root) CreatedOn() time.Time  { return r.createdOn }
func (r *Root) UpdatedBy() *uuid.UUID { return r.updatedBy }
func (r *Root) UpdatedOn() time.Time  { return r.updatedOn }

// Uncommitted returns the events raised since the last successful save, in
// raise order.
func (r *Root) Uncommitted() []Envelope { return r.pending }

// MarkDeleted is called by delete-event reducers. Deletion is only ever
// logical; the stream itself is never removed.
func (r *Root) MarkDeleted() { r.deleted = true }

// Raise applies p to agg immediately and queues the envelope for the next
// save.
func Raise(agg Aggregate, p Payload, actor *uuid.UUID) {
	env := Envelope{Payload: p, Actor: actor, At: time.Now().UTC()}
	agg.Apply(env)
	base := agg.Base()
	base.pending = append(base.pending, env)
}

// fold advances version and audit metadata for one committed envelope.
func (r *Root) fold(env Envelope) {
	if r.version == 0 {
		r.createdBy, r.createdOn = env.Actor, env.At
	}
	r.updatedBy, r.updatedOn = env.Actor, env.At
	r.version++
}

// commit folds the pending buffer after a successful append and clears it.
func (r *Root) commit() {
	for _, env := range r.pending {
		r.fold(env)
	}
	r.pending = nil
}

// replay feeds one stored envelope through the aggregate's reducer.
func replay(agg Aggregate, env Envelope) {
	agg.Apply(env)
	agg.Base().fold(env)
}
