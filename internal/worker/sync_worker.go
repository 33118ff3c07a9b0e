// Package worker mirrors recorded expenses into a spreadsheet as
// expense.recorded messages arrive.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

type (
	// ExpenseSource looks up a stored expense by id.
	ExpenseSource interface {
		Expense(ctx context.Context, id int64) (core.Expense, error)
	}

	// Consumer feeds expense.recorded messages to a handler until ctx ends.
	Consumer interface {
		ConsumeExpenseRecorded(ctx context.Context, handler amqp.Handler) error
	}
)

// SyncWorker copies each announced expense into the sheet.
type SyncWorker struct {
	source ExpenseSource
	sheets sheets.ExpenseWriter
	logger *slog.Logger
}

func NewSyncWorker(source ExpenseSource, writer sheets.ExpenseWriter, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{source: source, sheets: writer, logger: logger}
}

// HandleRecorded mirrors one expense. Unknown ids are dropped; any other
// failure is returned so the message is requeued.
func (w *SyncWorker) HandleRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense.recorded message", "id", msg.ID, "date", msg.Date)

	expense, err := w.source.Expense(ctx, msg.ID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "Expense not found, dropping message", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %d: %w", msg.ID, err)
	}

	ref, err := w.sheets.Append(ctx, expense)
	if err != nil {
		return fmt.Errorf("append expense %d to sheet: %w", msg.ID, err)
	}

	w.logger.InfoContext(ctx, "Expense mirrored to sheet", "id", msg.ID, "ref", ref)
	return nil
}

// Run consumes messages until ctx is cancelled.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	err := consumer.ConsumeExpenseRecorded(ctx, w.HandleRecorded)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
