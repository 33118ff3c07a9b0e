package core

// RecordResult is the outcome of a record attempt: Recorded or Rejected.
type RecordResult interface {
	Success() bool
	isRecordResult()
}

// Recorded carries the id the storage layer assigned.
type Recorded struct {
	ExpenseID int64
}

// Rejected carries a human-readable validation message.
type Rejected struct {
	Message string
}

func (Recorded) Success() bool { return true }
func (Rejected) Success() bool { return false }

func (Recorded) isRecordResult() {}
func (Rejected) isRecordResult() {}
