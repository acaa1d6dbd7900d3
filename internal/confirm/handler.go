package confirm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homevault/reconcile/internal/model"
)

// FinanceDomain is the downstream record domain accepted suggestions land in.
const FinanceDomain = "finance"

// RecordRequest is the downstream-record creation payload for an accepted
// suggestion. One request is emitted per suggestion, not per member
// transaction.
type RecordRequest struct {
	UserID    string
	SessionID string
	Title     string
	Provider  string
	Type      string
	Frequency model.Frequency
	Amount    model.AmountPattern
	Metadata  model.ImportMetadata
}

// RecordCreator is the external financial-record store. Creation either
// succeeds with the new record's ID or did not happen.
type RecordCreator interface {
	Create(ctx context.Context, req RecordRequest) (string, error)
}

// Handler resolves suggestions by index within their session.
type Handler struct {
	store     Store
	records   RecordCreator
	lifecycle *Lifecycle
}

// NewHandler creates a confirmation handler.
func NewHandler(store Store, records RecordCreator) *Handler {
	return &Handler{
		store:     store,
		records:   records,
		lifecycle: NewLifecycle(store),
	}
}

// Accept resolves a pending suggestion as accepted, creates exactly one
// downstream record carrying the import metadata, and marks every member
// transaction record_created. A suggestion that is already resolved yields
// ErrAlreadyResolved; a concurrent duplicate accept loses the status flip
// and can never create a second record.
func (h *Handler) Accept(ctx context.Context, sessionID string, index int) (*model.RecurringPaymentSuggestion, error) {
	sess, err := h.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	suggestion, err := h.store.ResolveSuggestion(ctx, sessionID, index, model.SuggestionAccepted)
	if err != nil {
		return nil, err
	}

	req := buildRecordRequest(sess, suggestion)

	recordID, err := h.records.Create(ctx, req)
	if err != nil {
		// The record did not happen; put the suggestion back so the user
		// can retry.
		if reopenErr := h.store.ReopenSuggestion(ctx, sessionID, index); reopenErr != nil {
			slog.Error("Failed to reopen suggestion after record creation failure",
				"session", sessionID,
				"index", index,
				"error", reopenErr)
		}
		return nil, fmt.Errorf("failed to create downstream record: %w", err)
	}

	for _, txID := range suggestion.TransactionIDs {
		if err := h.lifecycle.MarkRecordCreated(ctx, txID, recordID, FinanceDomain); err != nil {
			// The record exists; a member already out of pending is logged,
			// not fatal.
			slog.Warn("Failed to mark member transaction",
				"transaction", txID,
				"record", recordID,
				"error", err)
		}
	}

	slog.Info("Accepted suggestion",
		"session", sessionID,
		"payee", suggestion.Payee,
		"record", recordID)

	return suggestion, nil
}

// Reject terminally resolves a pending suggestion as rejected with no side
// effects.
func (h *Handler) Reject(ctx context.Context, sessionID string, index int) (*model.RecurringPaymentSuggestion, error) {
	suggestion, err := h.store.ResolveSuggestion(ctx, sessionID, index, model.SuggestionRejected)
	if err != nil {
		return nil, err
	}

	slog.Info("Rejected suggestion",
		"session", sessionID,
		"payee", suggestion.Payee)

	return suggestion, nil
}

func buildRecordRequest(sess *model.ImportSession, s *model.RecurringPaymentSuggestion) RecordRequest {
	amount := model.AmountPattern{
		TypicalAmount: s.Amount,
		Variance:      s.AmountVariance,
		Currency:      "GBP",
	}

	return RecordRequest{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Title:     s.SuggestedEntry.Title,
		Provider:  s.SuggestedEntry.Provider,
		Type:      s.SuggestedEntry.Type,
		Frequency: s.Frequency,
		Amount:    amount,
		Metadata: model.ImportMetadata{
			Source:                "bank_import",
			ImportSessionID:       sess.ID,
			CreatedFromSuggestion: true,
			OriginalPayee:         s.Payee,
			ConfidenceScore:       s.Confidence,
			DetectedFrequency:     s.Frequency,
			AmountPattern:         amount,
		},
	}
}
