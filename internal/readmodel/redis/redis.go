// Package redis provee el índice de unicidad distribuido para producción.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	rdb "github.com/redis/go-redis/v9"

	"github.com/keyfold/keyfold/internal/es/uniq"
	"github.com/keyfold/keyfold/internal/readmodel"
)

type Store struct {
	c      *rdb.Client
	prefix string
}

func New(addr string, db int, prefix string) *Store {
	return &Store{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
	}
}

func (s *Store) Ping(ctx context.Context) error { return s.c.Ping(ctx).Err() }

func (s *Store) Close() error { return s.c.Close() }

func (s *Store) FindIDByUniqueValue(ctx context.Context, scope uniq.Scope, value string) (*uuid.UUID, error) {
	v, err := s.c.Get(ctx, s.prefix+readmodel.Key(scope, value)).Result()
	if errors.Is(err, rdb.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("readmodel redis: %w", err)
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("readmodel redis: bad id for %s: %w", scope, err)
	}
	return &id, nil
}

func (s *Store) SetUnique(ctx context.Context, scope uniq.Scope, value string, id uuid.UUID) error {
	return s.c.Set(ctx, s.prefix+readmodel.Key(scope, value), id.String(), 0).Err()
}

func (s *Store) DeleteUnique(ctx context.Context, scope uniq.Scope, value string) error {
	return s.c.Del(ctx, s.prefix+readmodel.Key(scope, value)).Err()
}
