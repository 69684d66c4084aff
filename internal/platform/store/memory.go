// Package store provides the record stores backing the sandbox
// repositories: a thread-safe in-memory store and a PostgreSQL one.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
)

// Store keeps values of one record kind keyed by id, in insertion order.
type Store[T any] interface {
	Insert(ctx context.Context, id uuid.UUID, v T) error
	Get(ctx context.Context, id uuid.UUID) (T, error)
	Replace(ctx context.Context, id uuid.UUID, v T) error
	// Modify atomically replaces the value with fn(value). When fn fails
	// the stored value is left unchanged and fn's error is returned.
	Modify(ctx context.Context, id uuid.UUID, fn func(T) (T, error)) (T, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteIf removes the value only when check accepts it. The check and
	// the removal are atomic; check's error is returned unchanged.
	DeleteIf(ctx context.Context, id uuid.UUID, check func(T) error) error
	// Find returns the page [offset, offset+limit) of the values accepted
	// by match, and the total number of matches. A nil match accepts
	// everything and a non-positive limit means no upper bound.
	Find(ctx context.Context, match func(T) bool, limit, offset int) ([]T, int, error)
}

var _ Store[struct{}] = (*Memory[struct{}])(nil)

// Memory keeps values keyed by id. Insertion order is retained so that
// pagination over a search is deterministic.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[uuid.UUID]T
	// ordered keys for deterministic pagination
	order []uuid.UUID
}

// NewMemory creates an empty store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{items: make(map[uuid.UUID]T)}
}

func (s *Memory[T]) Insert(_ context.Context, id uuid.UUID, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrExists)
	}
	s.items[id] = v
	s.order = append(s.order, id)
	return nil
}

func (s *Memory[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return v, nil
}

func (s *Memory[T]) Replace(_ context.Context, id uuid.UUID, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.items[id] = v
	return nil
}

// Modify applies fn to the stored value under the write lock.
func (s *Memory[T]) Modify(_ context.Context, id uuid.UUID, fn func(T) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	s.items[id] = next
	return next, nil
}

func (s *Memory[T]) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.removeLocked(id)
	return nil
}

func (s *Memory[T]) DeleteIf(_ context.Context, id uuid.UUID, check func(T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.items[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := check(cur); err != nil {
		return err
	}
	s.removeLocked(id)
	return nil
}

func (s *Memory[T]) removeLocked(id uuid.UUID) {
	delete(s.items, id)
	// Remove from ordered list
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Memory[T]) Find(_ context.Context, match func(T) bool, limit, offset int) ([]T, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var filtered []T
	for _, id := range s.order {
		v, ok := s.items[id]
		if !ok {
			continue
		}
		if match == nil || match(v) {
			filtered = append(filtered, v)
		}
	}
	return Slice(filtered, limit, offset), len(filtered), nil
}

// Slice returns the window [offset, offset+limit) of all. A non-positive
// limit means no upper bound.
func Slice[T any](all []T, limit, offset int) []T {
	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end]
}

func (s *Memory[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
