package sheets

import (
	"context"

	"expensetracker/internal/core"
)

// ExpenseWriter mirrors a stored expense into an external spreadsheet.
type ExpenseWriter interface {
	Append(ctx context.Context, e core.Expense) (rowRef string, err error)
}
