// Package ledger is the single gatekeeper for expense records: it validates
// submissions, writes them through the injected store and answers day queries.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/codec"
	"expensetracker/internal/core"
)

// Store is the persistence port. Implementations must be safe for concurrent
// use and assign unique ids atomically.
type Store interface {
	Insert(ctx context.Context, fields *codec.Object) (int64, error)
	ByDate(ctx context.Context, date string) ([]core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	Ping(ctx context.Context) error
}

// Publisher announces recorded expenses to downstream consumers.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, id int64, date string) error
}

type Ledger struct {
	store     Store
	publisher Publisher
	days      cache.Cache[[]core.Expense]
	logger    *slog.Logger

	// fillMu orders cache fills against invalidations; generation counts
	// records so a fill that raced one is dropped.
	fillMu     sync.Mutex
	generation uint64
}

type Option func(*Ledger)

// WithPublisher enables expense.recorded events. A nil publisher is ignored.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publisher = p
		}
	}
}

// WithDayCache caches ExpensesOn results per date. A non-positive ttl disables it.
// Invalidation is in-process only: enable it when a single instance owns the store.
func WithDayCache(size int, ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.days = cache.NewLRU[[]core.Expense](size, ttl)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DayCache exposes the day cache so it can be swept periodically. It is nil when disabled.
func (l *Ledger) DayCache() cache.Cleaner {
	if c, ok := l.days.(cache.Cleaner); ok {
		return c
	}
	return nil
}

// Record validates expense and persists it. A missing required field yields
// core.Rejected and a nil error; storage failures are returned as errors
// wrapping core.ErrStorageUnavailable.
func (l *Ledger) Record(ctx context.Context, expense *codec.Object) (core.RecordResult, error) {
	if err := core.Validate(expense); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			l.logger.DebugContext(ctx, "Expense rejected", "missing_field", verr.Field)
			return core.Rejected{Message: verr.Error()}, nil
		}
		return nil, err
	}

	id, err := l.store.Insert(ctx, expense)
	if err != nil {
		return nil, fmt.Errorf("%w: insert expense: %w", core.ErrStorageUnavailable, err)
	}

	date := core.Expense{Fields: expense}.Date()
	if l.days != nil {
		l.fillMu.Lock()
		l.generation++
		l.days.Delete(date)
		l.fillMu.Unlock()
	}

	l.logger.InfoContext(ctx, "Expense recorded", "id", id, "date", date)

	if l.publisher != nil {
		if err := l.publisher.PublishExpenseRecorded(ctx, id, date); err != nil {
			// The expense is stored; a failed publish never fails the record.
			l.logger.ErrorContext(ctx, "Failed to publish expense.recorded", "id", id, "error", err)
		}
	}

	return core.Recorded{ExpenseID: id}, nil
}

// ExpensesOn returns every expense recorded for date, oldest first. The
// result is never nil.
func (l *Ledger) ExpensesOn(ctx context.Context, date string) ([]core.Expense, error) {
	var gen uint64
	if l.days != nil {
		if cached, ok := l.days.Get(date); ok {
			return append([]core.Expense{}, cached...), nil
		}
		l.fillMu.Lock()
		gen = l.generation
		l.fillMu.Unlock()
	}

	expenses, err := l.store.ByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: expenses on %s: %w", core.ErrStorageUnavailable, date, err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}

	if l.days != nil {
		l.fillMu.Lock()
		if l.generation == gen {
			l.days.Set(date, append([]core.Expense{}, expenses...))
		}
		l.fillMu.Unlock()
	}
	return expenses, nil
}

// Expense fetches one expense by id, returning core.ErrNotFound when it does not exist.
func (l *Ledger) Expense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := l.store.Get(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Expense{}, err
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: expense %d: %w", core.ErrStorageUnavailable, id, err)
	}
	return e, nil
}

// Ping reports whether the store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorageUnavailable, err)
	}
	return nil
}
