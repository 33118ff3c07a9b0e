package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// maxBodyBytes caps POST /expenses bodies.
const maxBodyBytes = 1 << 20

// handleCreateExpense records one expense. Request and response share the
// format named by Content-Type; Accept is not consulted.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := codec.ParseMediaType(r.Header.Get("Content-Type"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			expensesRecordedTotal.WithLabelValues(outcomeMalformed).Inc()
			writeError(w, r, http.StatusRequestEntityTooLarge, m, msgTooLarge)
			return
		}
		expensesRecordedTotal.WithLabelValues(outcomeMalformed).Inc()
		writeError(w, r, http.StatusBadRequest, m, msgMalformed)
		return
	}

	fields, err := codec.DecodeObject(body, m)
	if err != nil {
		log.FromContext(ctx).DebugContext(ctx, "Malformed expense body",
			log.FieldError, err,
			log.FieldOperation, log.OpDecode,
			log.FieldMediaType, m.String())
		expensesRecordedTotal.WithLabelValues(outcomeMalformed).Inc()
		writeError(w, r, http.StatusBadRequest, m, msgMalformed)
		return
	}

	result, err := s.ledger.Record(ctx, fields)
	if err != nil {
		s.events.LogError(ctx, "Failed to record expense", err, log.ComponentLedger, log.OpRecord, nil)
		expensesRecordedTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, r, http.StatusInternalServerError, m, msgInternal)
		return
	}

	switch res := result.(type) {
	case core.Recorded:
		expensesRecordedTotal.WithLabelValues(outcomeRecorded).Inc()
		s.events.LogExpenseRecorded(ctx, res.ExpenseID, core.Expense{Fields: fields}.Date(), m.String())
		writeEncoded(w, r, http.StatusOK, m, codec.NewObject().Set("expense_id", codec.Int(res.ExpenseID)))
	case core.Rejected:
		expensesRecordedTotal.WithLabelValues(outcomeRejected).Inc()
		writeError(w, r, http.StatusUnprocessableEntity, m, res.Message)
	default:
		expensesRecordedTotal.WithLabelValues(outcomeError).Inc()
		writeError(w, r, http.StatusInternalServerError, m, msgInternal)
	}
}

// handleListExpenses returns every expense recorded on the path's date in
// the format the Accept header asks for first.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := codec.Negotiate(r.Header.Get("Accept"))
	date := mux.Vars(r)["date"]

	expenses, err := s.ledger.ExpensesOn(ctx, date)
	if err != nil {
		fields := log.NewFields()
		fields[log.FieldDate] = date
		s.events.LogError(ctx, "Failed to list expenses", err, log.ComponentLedger, log.OpQuery, fields)
		writeError(w, r, http.StatusInternalServerError, m, msgInternal)
		return
	}

	items := make([]codec.Value, 0, len(expenses))
	for _, e := range expenses {
		items = append(items, e.Object())
	}
	writeEncoded(w, r, http.StatusOK, m, items)
}
