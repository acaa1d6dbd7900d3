package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSessionTTL is how long an import session is retained after creation
// unless configured otherwise.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionStatus tracks where an import session sits in its lifecycle.
type SessionStatus string

// Session status values.
const (
	SessionUploading  SessionStatus = "uploading"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionExpired    SessionStatus = "expired"
)

// Validate reports whether the status is a known value.
func (s SessionStatus) Validate() error {
	switch s {
	case SessionUploading, SessionProcessing, SessionCompleted, SessionFailed, SessionExpired:
		return nil
	}
	return fmt.Errorf("invalid session status: %q", string(s))
}

// Terminal reports whether no further processing transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionExpired
}

// CanTransitionTo reports whether the session state machine permits moving
// from s to next. The expired edge is reserved for the retention sweep and
// never applies to a session that is still processing.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionUploading:
		return next == SessionProcessing || next == SessionFailed || next == SessionExpired
	case SessionProcessing:
		return next == SessionCompleted || next == SessionFailed
	case SessionCompleted, SessionFailed, SessionExpired:
		return false
	}
	return false
}

// SessionStatistics aggregates what was found while processing a statement.
type SessionStatistics struct {
	TotalDebits       decimal.Decimal `json:"total_debits"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	TotalTransactions int             `json:"total_transactions"`
	RecurringDetected int             `json:"recurring_detected"`
	DateRangeDays     int             `json:"date_range_days"`
}

// StatementPeriod is the date range a statement covers, when the upstream
// parser could detect it.
type StatementPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ImportSession is the unit of work for one uploaded statement.
type ImportSession struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
	ID              string
	UserID          string
	Filename        string
	FileHash        string
	ProcessingStage string
	ErrorMessage    string
	BankName        string
	AccountNumber   string
	Status          SessionStatus
	Suggestions     []RecurringPaymentSuggestion
	StatementPeriod *StatementPeriod
	Statistics      SessionStatistics
	FileSize        int64
	AutoCleanup     bool
}
