package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunSQLiteMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert stores one expense and returns the id sqlite assigned.
func (r *SQLiteRepository) Insert(ctx context.Context, fields *codec.Object) (int64, error) {
	rw, err := newRow(fields)
	if err != nil {
		return 0, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (payee, amount, date, payload) VALUES (?, ?, ?, ?)`,
		rw.Payee, rw.Amount, rw.Date, rw.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted id: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite", "id", id, "date", rw.Date)
	return id, nil
}

// ByDate returns the expenses recorded for date in insertion order.
func (r *SQLiteRepository) ByDate(ctx context.Context, date string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, payload FROM expenses WHERE date = ? ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("query expenses by date: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e, err := expenseFromPayload(id, []byte(payload))
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// Get retrieves a single expense by id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM expenses WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return expenseFromPayload(id, []byte(payload))
}
