package es

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// StreamAddress is the opaque key of one aggregate's event stream. It packs
// the aggregate type tag, the entity id and (for tenant-scoped entities) the
// tenant id into a single string, so the log never needs to know about
// entity kinds or tenancy.
//
// Two addresses are equal iff tag, entity id and tenant id are all equal.
type StreamAddress string

const addrSep = "/"

// NewStreamAddress encodes (tag, id, tenant) into a stream address. Pass a
// nil tenant for global entities.
func NewStreamAddress(tag string, id uuid.UUID, tenant *uuid.UUID) StreamAddress {
	if tenant != nil {
		return StreamAddress(tag + addrSep + id.String() + addrSep + tenant.String())
	}
	return StreamAddress(tag + addrSep + id.String())
}

// ParseStreamAddress decodes addr back into its components, verifying that it
// carries the expected type tag. Round-trips: NewStreamAddress over the
// parsed components yields addr again.
func ParseStreamAddress(addr StreamAddress, wantTag string) (uuid.UUID, *uuid.UUID, error) {
	parts := strings.Split(string(addr), addrSep)
	if len(parts) != 2 && len(parts) != 3 {
		return uuid.Nil, nil, fmt.Errorf("%w: %q", ErrBadAddress, addr)
	}
	if parts[0] != wantTag {
		return uuid.Nil, nil, fmt.Errorf("%w: %q is a %q stream, want %q", ErrBadAddress, addr, parts[0], wantTag)
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("%w: %q: bad entity id", ErrBadAddress, addr)
	}
	var tenant *uuid.UUID
	if len(parts) == 3 {
		t, err := uuid.Parse(parts[2])
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("%w: %q: bad tenant id", ErrBadAddress, addr)
		}
		tenant = &t
	}
	return id, tenant, nil
}
