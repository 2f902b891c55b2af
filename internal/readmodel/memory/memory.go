// Package memory provee un índice de unicidad en memoria (go-cache), para
// tests y modo dev.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/keyfold/keyfold/internal/es/uniq"
	"github.com/keyfold/keyfold/internal/readmodel"
)

type Store struct {
	c *gocache.Cache
}

func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (s *Store) FindIDByUniqueValue(ctx context.Context, scope uniq.Scope, value string) (*uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.c.Get(readmodel.Key(scope, value))
	if !ok {
		return nil, nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (s *Store) SetUnique(ctx context.Context, scope uniq.Scope, value string, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Set(readmodel.Key(scope, value), id, gocache.NoExpiration)
	return nil
}

func (s *Store) DeleteUnique(ctx context.Context, scope uniq.Scope, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Delete(readmodel.Key(scope, value))
	return nil
}
