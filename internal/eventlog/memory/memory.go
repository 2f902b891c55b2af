// Package memory provee un event log en memoria, para tests y modo dev.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/keyfold/keyfold/internal/es"
)

// Log is an in-memory append-only event log, safe for concurrent use.
type Log struct {
	mu      sync.RWMutex
	streams map[es.StreamAddress][]es.Record
}

func New() *Log {
	return &Log{streams: make(map[es.StreamAddress][]es.Record)}
}

func (l *Log) Append(ctx context.Context, addr es.StreamAddress, expected int64, recs []es.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := int64(len(l.streams[addr]))
	if cur != expected {
		return fmt.Errorf("%w: %s at %d, expected %d", es.ErrVersionConflict, addr, cur, expected)
	}
	l.streams[addr] = append(l.streams[addr], recs...)
	return nil
}

func (l *Log) Read(ctx context.Context, addr es.StreamAddress, upTo int64) ([]es.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	recs, ok := l.streams[addr]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", addr, es.ErrNotFound)
	}
	if upTo > 0 && upTo < int64(len(recs)) {
		recs = recs[:upTo]
	}
	out := make([]es.Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Len reports the number of events committed to addr. Test helper.
func (l *Log) Len(addr es.StreamAddress) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.streams[addr])
}
