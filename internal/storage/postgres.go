package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository migrates the schema and opens a connection pool.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	if err := RunPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresRepository) Insert(ctx context.Context, fields *codec.Object) (int64, error) {
	rw, err := newRow(fields)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO expenses (payee, amount, date, payload) VALUES ($1, $2, $3, $4) RETURNING id`,
		rw.Payee, rw.Amount, rw.Date, rw.Payload).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) ByDate(ctx context.Context, date string) ([]core.Expense, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, payload FROM expenses WHERE date = $1 ORDER BY id`, date)
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

func (r *PostgresRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	var payload string
	err := r.pool.QueryRow(ctx, `SELECT payload FROM expenses WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	return expenseFromPayload(id, []byte(payload))
}
