// Package storage holds the persistent expense repositories. Every backend
// stores the payee, amount and date as indexed text columns next to a JSON
// payload of the full field object, so extra fields and key order survive.
package storage

import (
	"fmt"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
)

// row is the flattened form shared by all backends.
type row struct {
	Payee   string
	Amount  string
	Date    string
	Payload string
}

func newRow(fields *codec.Object) (row, error) {
	stored := fields.Clone()
	stored.Delete(core.FieldID)

	payload, err := codec.Encode(stored, codec.JSON)
	if err != nil {
		return row{}, fmt.Errorf("encode payload: %w", err)
	}

	e := core.Expense{Fields: stored}
	return row{
		Payee:   e.Payee(),
		Amount:  e.Amount(),
		Date:    e.Date(),
		Payload: string(payload),
	}, nil
}

func expenseFromPayload(id int64, payload []byte) (core.Expense, error) {
	fields, err := codec.DecodeObject(payload, codec.JSON)
	if err != nil {
		return core.Expense{}, fmt.Errorf("decode payload of expense %d: %w", id, err)
	}
	return core.Expense{ID: id, Fields: fields}, nil
}
