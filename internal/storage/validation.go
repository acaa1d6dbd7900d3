package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/homevault/reconcile/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidDateRange   = errors.New("start date must be before end date")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidSession     = errors.New("invalid session")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a single transaction before persisting.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.SessionID == "" {
		return fmt.Errorf("%w: missing session ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if strings.TrimSpace(txn.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidTransaction)
	}
	if err := txn.Status.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if txn.PatternConfidence < 0 || txn.PatternConfidence > 1 {
		return fmt.Errorf("%w: pattern confidence must be between 0 and 1", ErrInvalidTransaction)
	}
	return nil
}

// validateSession validates an import session before persisting.
func validateSession(sess *model.ImportSession) error {
	if sess == nil {
		return fmt.Errorf("%w: session", ErrNilParameter)
	}
	if sess.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidSession)
	}
	if sess.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidSession)
	}
	if strings.TrimSpace(sess.Filename) == "" {
		return fmt.Errorf("%w: missing filename", ErrInvalidSession)
	}
	if err := sess.Status.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}
