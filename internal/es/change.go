package es

import (
	"bytes"
	"encoding/json"
)

// Change is a tri-state update instruction for one field of an update-style
// event: not provided, explicitly cleared, or set to a value. The zero value
// means "not provided", so untouched fields cost nothing to carry.
type Change[T any] struct {
	op    changeOp
	value T
}

type changeOp uint8

const (
	opUnset changeOp = iota
	opClear
	opSet
)

// Set returns an instruction that assigns v to the field.
func Set[T any](v T) Change[T] { return Change[T]{op: opSet, value: v} }

// Clear returns an instruction that empties the field.
func Clear[T any]() Change[T] { return Change[T]{op: opClear} }

// IsZero reports whether the field was not touched at all.
func (c Change[T]) IsZero() bool { return c.op == opUnset }

// Cleared reports an explicit clear instruction.
func (c Change[T]) Cleared() bool { return c.op == opClear }

// Value returns the assigned value, and whether one was assigned.
func (c Change[T]) Value() (T, bool) { return c.value, c.op == opSet }

// Apply folds the instruction into a value-typed field; clearing resets it to
// the type's zero value.
func (c Change[T]) Apply(target *T) {
	switch c.op {
	case opClear:
		var zero T
		*target = zero
	case opSet:
		*target = c.value
	}
}

// ApplyPtr folds the instruction into an optional (pointer-typed) field;
// clearing sets it to nil.
func (c Change[T]) ApplyPtr(target **T) {
	switch c.op {
	case opClear:
		*target = nil
	case opSet:
		v := c.value
		*target = &v
	}
}

type changeJSON[T any] struct {
	Clear bool `json:"clear,omitempty"`
	Set   *T   `json:"set,omitempty"`
}

var jsonNull = []byte("null")

func (c Change[T]) MarshalJSON() ([]byte, error) {
	switch c.op {
	case opClear:
		return json.Marshal(changeJSON[T]{Clear: true})
	case opSet:
		v := c.value
		return json.Marshal(changeJSON[T]{Set: &v})
	default:
		return jsonNull, nil
	}
}

func (c *Change[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*c = Change[T]{}
		return nil
	}
	var raw changeJSON[T]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Set != nil:
		*c = Set(*raw.Set)
	case raw.Clear:
		*c = Clear[T]()
	default:
		*c = Change[T]{}
	}
	return nil
}
