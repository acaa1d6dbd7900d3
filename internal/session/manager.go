// Package session owns the import-session state machine and its aggregate
// statistics.
package session

import (
	"context"
	"fmt"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"
)

// Store is the persistence surface the manager needs.
type Store interface {
	CreateSession(ctx context.Context, sess *model.ImportSession) error
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	UpdateSessionStatus(ctx context.Context, id string, from, to model.SessionStatus, errorMessage string) error
	SetProcessingStage(ctx context.Context, id, stage string) error
	UpdateSessionStatistics(ctx context.Context, id string, stats model.SessionStatistics) error
	SetSessionMetadata(ctx context.Context, id, bankName, accountNumber string, period *model.StatementPeriod) error
}

// Manager drives import sessions through uploading → processing →
// {completed, failed}. Expiry is reserved for the retention sweep.
type Manager struct {
	store Store
}

// NewManager creates a new session lifecycle manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Create registers a new session in the uploading state.
func (m *Manager) Create(ctx context.Context, sess *model.ImportSession) error {
	if sess.Status == "" {
		sess.Status = model.SessionUploading
	}
	if sess.Status != model.SessionUploading {
		return fmt.Errorf("session must start uploading, not %s: %w", sess.Status, common.ErrInvalidTransition)
	}
	return m.store.CreateSession(ctx, sess)
}

// StartProcessing moves a session from uploading to processing.
func (m *Manager) StartProcessing(ctx context.Context, id string) error {
	return m.transition(ctx, id, model.SessionUploading, model.SessionProcessing, "")
}

// Complete moves a session from processing to completed.
func (m *Manager) Complete(ctx context.Context, id string) error {
	return m.transition(ctx, id, model.SessionProcessing, model.SessionCompleted, "")
}

// Fail moves a session from processing to failed, recording the error.
// Statistics keep their last-known values.
func (m *Manager) Fail(ctx context.Context, id, errorMessage string) error {
	return m.transition(ctx, id, model.SessionProcessing, model.SessionFailed, errorMessage)
}

// SetStage updates the advisory progress text; it is not gated by the state
// machine.
func (m *Manager) SetStage(ctx context.Context, id, stage string) error {
	return m.store.SetProcessingStage(ctx, id, stage)
}

// UpdateStatistics merges an ingestion batch's statistics into the session.
func (m *Manager) UpdateStatistics(ctx context.Context, id string, delta model.SessionStatistics) error {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return err
	}

	stats := sess.Statistics
	stats.TotalTransactions += delta.TotalTransactions
	stats.TotalDebits = stats.TotalDebits.Add(delta.TotalDebits)
	stats.TotalCredits = stats.TotalCredits.Add(delta.TotalCredits)
	if delta.DateRangeDays > stats.DateRangeDays {
		stats.DateRangeDays = delta.DateRangeDays
	}
	if delta.RecurringDetected > 0 {
		stats.RecurringDetected = delta.RecurringDetected
	}

	return m.store.UpdateSessionStatistics(ctx, id, stats)
}

// SetMetadata records statement metadata detected by the parser.
func (m *Manager) SetMetadata(ctx context.Context, id, bankName, accountNumber string, period *model.StatementPeriod) error {
	return m.store.SetSessionMetadata(ctx, id, bankName, accountNumber, period)
}

func (m *Manager) transition(ctx context.Context, id string, from, to model.SessionStatus, errorMessage string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("session %s → %s: %w", from, to, common.ErrInvalidTransition)
	}
	return m.store.UpdateSessionStatus(ctx, id, from, to, errorMessage)
}
