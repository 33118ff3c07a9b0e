package core

import (
	"errors"
	"fmt"

	"expensetracker/internal/codec"
)

// Field names with meaning to the ledger. Every other field is carried verbatim.
const (
	FieldID     = "id"
	FieldPayee  = "payee"
	FieldAmount = "amount"
	FieldDate   = "date"
)

// RequiredFields lists the fields every expense must carry, in the order they are checked.
var RequiredFields = []string{FieldPayee, FieldAmount, FieldDate}

var (
	ErrNotFound           = errors.New("expense not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type (
	// Expense is a persisted expense record. Fields holds everything the
	// client submitted (minus any id), in submission order.
	Expense struct {
		ID     int64
		Fields *codec.Object
	}

	// ValidationError names the first required field an expense is missing.
	ValidationError struct {
		Field string
	}
)

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid expense: `%s` is required", e.Field)
}

// Validate checks the required fields in order and reports the first one missing.
// A field whose value is nil counts as missing.
func Validate(fields *codec.Object) error {
	for _, name := range RequiredFields {
		if v, ok := fields.Get(name); !ok || v == nil {
			return &ValidationError{Field: name}
		}
	}
	return nil
}

// Payee returns the payee as text.
func (e Expense) Payee() string {
	return e.text(FieldPayee)
}

// Amount returns the amount literal, e.g. "5.75".
func (e Expense) Amount() string {
	return e.text(FieldAmount)
}

// Date returns the expense date as submitted, e.g. "2017-06-10".
func (e Expense) Date() string {
	return e.text(FieldDate)
}

func (e Expense) text(field string) string {
	v, _ := e.Fields.Get(field)
	return codec.Text(v)
}

// Object returns the wire form: id first, then the stored fields.
func (e Expense) Object() *codec.Object {
	obj := codec.NewObject().Set(FieldID, codec.Int(e.ID))
	for _, k := range e.Fields.Keys() {
		if k == FieldID {
			continue
		}
		v, _ := e.Fields.Get(k)
		obj.Set(k, v)
	}
	return obj
}
