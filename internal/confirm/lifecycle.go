// Package confirm owns the per-transaction lifecycle and the user-driven
// resolution of recurring-payment suggestions.
package confirm

import (
	"context"
	"time"

	"github.com/homevault/reconcile/internal/model"
)

// Store is the persistence surface the confirmation handlers need.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	ResolveSuggestion(ctx context.Context, sessionID string, index int, status model.SuggestionStatus) (*model.RecurringPaymentSuggestion, error)
	ReopenSuggestion(ctx context.Context, sessionID string, index int) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	MarkRecordCreated(ctx context.Context, txID, recordID, recordDomain string) error
	IgnoreTransaction(ctx context.Context, txID, reason string, at time.Time) error
	UndoIgnore(ctx context.Context, txID string) error
}

// Lifecycle exposes the per-transaction state operations. All transitions
// are enforced by conditional updates in the store: pending → record_created
// is terminal, pending → ignored is reversible via Undo, and nothing else
// moves.
type Lifecycle struct {
	store Store
}

// NewLifecycle creates transaction lifecycle operations over the store.
func NewLifecycle(store Store) *Lifecycle {
	return &Lifecycle{store: store}
}

// Ignore moves a pending transaction to ignored with a reason.
func (l *Lifecycle) Ignore(ctx context.Context, txID, reason string) error {
	return l.store.IgnoreTransaction(ctx, txID, reason, time.Now().UTC())
}

// Undo returns an ignored transaction to pending, clearing the ignore
// fields. Undoing a transaction in any other state is an invalid-state
// operation.
func (l *Lifecycle) Undo(ctx context.Context, txID string) error {
	return l.store.UndoIgnore(ctx, txID)
}

// MarkRecordCreated terminally links a pending transaction to the downstream
// record created from it.
func (l *Lifecycle) MarkRecordCreated(ctx context.Context, txID, recordID, recordDomain string) error {
	return l.store.MarkRecordCreated(ctx, txID, recordID, recordDomain)
}
