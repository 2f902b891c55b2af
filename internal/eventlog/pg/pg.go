// Package pg persists event streams in Postgres via pgx.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keyfold/keyfold/internal/es"
)

// Log stores every stream in a single append-only table. The (address, seq)
// primary key is what makes the optimistic append safe: two writers racing
// from the same version collide on the first inserted seq.
type Log struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS events (
    address  text        NOT NULL,
    seq      bigint      NOT NULL,
    kind     text        NOT NULL,
    payload  jsonb       NOT NULL,
    actor    text        NULL,
    at       timestamptz NOT NULL,
    PRIMARY KEY (address, seq)
);
`

func New(ctx context.Context, dsn string) (*Log, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog pg: %w", err)
	}
	return &Log{pool: pool}, nil
}

// Migrate creates the events table if it does not exist.
func (l *Log) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, schema)
	return err
}

func (l *Log) Ping(ctx context.Context) error { return l.pool.Ping(ctx) }

func (l *Log) Close() { l.pool.Close() }

func (l *Log) Append(ctx context.Context, addr es.StreamAddress, expected int64, recs []es.Record) error {
	tx, err := l.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE address = $1`,
		string(addr)).Scan(&cur)
	if err != nil {
		return err
	}
	if cur != expected {
		return fmt.Errorf("%w: %s at %d, expected %d", es.ErrVersionConflict, addr, cur, expected)
	}

	for _, rec := range recs {
		var actor *string
		if rec.Actor != nil {
			s := rec.Actor.String()
			actor = &s
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO events (address, seq, kind, payload, actor, at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			string(rec.Address), rec.Seq, rec.Kind, rec.Data, actor, rec.At)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// Unique violation on (address, seq): a concurrent writer won.
				return fmt.Errorf("%w: %s seq %d", es.ErrVersionConflict, addr, rec.Seq)
			}
			return err
		}
	}
	return tx.Commit(ctx)
}

func (l *Log) Read(ctx context.Context, addr es.StreamAddress, upTo int64) ([]es.Record, error) {
	query := `SELECT seq, kind, payload, actor, at FROM events WHERE address = $1 ORDER BY seq`
	args := []any{string(addr)}
	if upTo > 0 {
		query = `SELECT seq, kind, payload, actor, at FROM events WHERE address = $1 AND seq <= $2 ORDER BY seq`
		args = append(args, upTo)
	}
	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []es.Record
	for rows.Next() {
		rec := es.Record{Address: addr}
		var actor *string
		if err := rows.Scan(&rec.Seq, &rec.Kind, &rec.Data, &actor, &rec.At); err != nil {
			return nil, err
		}
		if actor != nil {
			id, err := parseActor(*actor)
			if err != nil {
				return nil, fmt.Errorf("read %s seq %d: %w", addr, rec.Seq, err)
			}
			rec.Actor = id
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("read %s: %w", addr, es.ErrNotFound)
	}
	return out, nil
}

func parseActor(s string) (*uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
