package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
)

// Bucket names.
const (
	BucketExpenses = "expenses"
	BucketByDate   = "expenses_by_date"
)

// BoltRepository keeps payloads keyed by id plus a date index whose keys are
// date + 0x00 + id, so a prefix scan yields one day in insertion order.
type BoltRepository struct {
	db *bolt.DB
}

func NewBoltRepository(dbPath string) (*BoltRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketExpenses, BucketByDate} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltRepository{db: db}, nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}

func (r *BoltRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketExpenses)) == nil {
			return fmt.Errorf("bucket %s not found", BucketExpenses)
		}
		return nil
	})
}

func (r *BoltRepository) Insert(ctx context.Context, fields *codec.Object) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rw, err := newRow(fields)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketExpenses))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)

		if err := b.Put(itob(id), []byte(rw.Payload)); err != nil {
			return err
		}
		return tx.Bucket([]byte(BucketByDate)).Put(dateKey(rw.Date, id), nil)
	})
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return id, nil
}

func (r *BoltRepository) ByDate(ctx context.Context, date string) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	expenses := []core.Expense{}
	err := r.db.View(func(tx *bolt.Tx) error {
		payloads := tx.Bucket([]byte(BucketExpenses))
		prefix := append([]byte(date), 0)

		c := tx.Bucket([]byte(BucketByDate)).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if len(k) != len(prefix)+8 {
				continue
			}
			id := int64(binary.BigEndian.Uint64(k[len(prefix):]))
			e, err := expenseFromPayload(id, payloads.Get(itob(id)))
			if err != nil {
				return err
			}
			expenses = append(expenses, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query expenses by date: %w", err)
	}
	return expenses, nil
}

func (r *BoltRepository) Get(ctx context.Context, id int64) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}

	var data []byte
	err := r.db.View(func(tx *bolt.Tx) error {
		// Copy the value since it's only valid during the transaction.
		if v := tx.Bucket([]byte(BucketExpenses)).Get(itob(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense by id: %w", err)
	}
	if data == nil {
		return core.Expense{}, core.ErrNotFound
	}
	return expenseFromPayload(id, data)
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func dateKey(date string, id int64) []byte {
	k := make([]byte, 0, len(date)+9)
	k = append(k, date...)
	k = append(k, 0)
	return append(k, itob(id)...)
}
