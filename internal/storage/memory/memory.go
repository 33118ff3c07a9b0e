// Package memory is an in-process expense store for development and tests.
package memory

import (
	"context"
	"sync"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
)

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Expense
}

func New() *Store {
	return &Store{}
}

// Insert stores a copy of fields and assigns the next id.
func (s *Store) Insert(_ context.Context, fields *codec.Object) (int64, error) {
	stored := fields.Clone()
	stored.Delete(core.FieldID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.items = append(s.items, core.Expense{ID: s.nextID, Fields: stored})
	return s.nextID, nil
}

// ByDate returns the expenses whose date field renders as date, oldest first.
func (s *Store) ByDate(_ context.Context, date string) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Expense{}
	for _, e := range s.items {
		if e.Date() == date {
			out = append(out, copyOf(e))
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// ids are dense and start at 1
	if id < 1 || id > int64(len(s.items)) {
		return core.Expense{}, core.ErrNotFound
	}
	return copyOf(s.items[id-1]), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Len returns the number of stored expenses.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func copyOf(e core.Expense) core.Expense {
	return core.Expense{ID: e.ID, Fields: e.Fields.Clone()}
}
