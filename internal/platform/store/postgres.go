package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Postgres keeps one record kind as JSON documents in the records table.
// Rows are ordered by their insertion sequence.
type Postgres[T any] struct {
	pool *pgxpool.Pool
	kind string
}

var _ Store[struct{}] = (*Postgres[struct{}])(nil)

// NewPostgres returns a store for kind. The schema is created by the db
// package migrations.
func NewPostgres[T any](pool *pgxpool.Pool, kind string) *Postgres[T] {
	return &Postgres[T]{pool: pool, kind: kind}
}

func (s *Postgres[T]) Insert(ctx context.Context, id uuid.UUID, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", s.kind, id, err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO records (kind, id, doc) VALUES ($1, $2, $3)`, s.kind, id, doc)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", id, ErrExists)
	}
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", s.kind, id, err)
	}
	return nil
}

func (s *Postgres[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM records WHERE kind = $1 AND id = $2`, s.kind, id).Scan(&doc)
	if err != nil {
		var zero T
		return zero, s.lookupErr(id, err)
	}
	return s.decode(id, doc)
}

func (s *Postgres[T]) Replace(ctx context.Context, id uuid.UUID, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", s.kind, id, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE records SET doc = $3, updated_at = NOW() WHERE kind = $1 AND id = $2`, s.kind, id, doc)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", s.kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Modify locks the row for the duration of fn.
func (s *Postgres[T]) Modify(ctx context.Context, id uuid.UUID, fn func(T) (T, error)) (T, error) {
	var out T
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx,
			`SELECT doc FROM records WHERE kind = $1 AND id = $2 FOR UPDATE`, s.kind, id).Scan(&doc)
		if err != nil {
			return s.lookupErr(id, err)
		}
		cur, err := s.decode(id, doc)
		if err != nil {
			return err
		}
		out = cur
		next, err := fn(cur)
		if err != nil {
			return err
		}
		if doc, err = json.Marshal(next); err != nil {
			return fmt.Errorf("encode %s %s: %w", s.kind, id, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE records SET doc = $3, updated_at = NOW() WHERE kind = $1 AND id = $2`, s.kind, id, doc); err != nil {
			return fmt.Errorf("update %s %s: %w", s.kind, id, err)
		}
		out = next
		return nil
	})
	return out, err
}

func (s *Postgres[T]) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, s.kind, id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", s.kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteIf locks the row, runs check on the stored value and deletes it in
// the same transaction.
func (s *Postgres[T]) DeleteIf(ctx context.Context, id uuid.UUID, check func(T) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var doc []byte
		err := tx.QueryRow(ctx,
			`SELECT doc FROM records WHERE kind = $1 AND id = $2 FOR UPDATE`, s.kind, id).Scan(&doc)
		if err != nil {
			return s.lookupErr(id, err)
		}
		cur, err := s.decode(id, doc)
		if err != nil {
			return err
		}
		if err := check(cur); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM records WHERE kind = $1 AND id = $2`, s.kind, id); err != nil {
			return fmt.Errorf("delete %s %s: %w", s.kind, id, err)
		}
		return nil
	})
}

// Find decodes every document of the kind and filters in process, so that
// match can be any predicate the in-memory store accepts.
func (s *Postgres[T]) Find(ctx context.Context, match func(T) bool, limit, offset int) ([]T, int, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, doc FROM records WHERE kind = $1 ORDER BY seq`, s.kind)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", s.kind, err)
	}
	defer rows.Close()

	var filtered []T
	for rows.Next() {
		var id uuid.UUID
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", s.kind, err)
		}
		v, err := s.decode(id, doc)
		if err != nil {
			return nil, 0, err
		}
		if match == nil || match(v) {
			filtered = append(filtered, v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", s.kind, err)
	}
	return Slice(filtered, limit, offset), len(filtered), nil
}

func (s *Postgres[T]) decode(id uuid.UUID, doc []byte) (T, error) {
	var v T
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("decode %s %s: %w", s.kind, id, err)
	}
	return v, nil
}

func (s *Postgres[T]) lookupErr(id uuid.UUID, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("select %s %s: %w", s.kind, id, err)
}
