// Package ingest normalizes parsed statement lines into persisted
// transactions, deduplicating on the user-scoped fingerprint.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/homevault/reconcile/internal/model"
	"github.com/homevault/reconcile/internal/statement"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is the persistence surface the ingestor needs.
type Store interface {
	InsertTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, bool, error)
}

// LineFailure records a statement line that failed validation. A failed line
// never aborts the rest of the batch.
type LineFailure struct {
	Line   int
	Reason string
}

// BatchResult summarizes one ingestion pass over a statement's lines.
type BatchResult struct {
	Transactions []model.Transaction
	Failures     []LineFailure
	Statistics   model.SessionStatistics
	Imported     int
	Duplicates   int
}

// Ingestor persists parsed statement lines for one (user, session) pair.
type Ingestor struct {
	store Store
}

// NewIngestor creates a new transaction ingestor.
func NewIngestor(store Store) *Ingestor {
	return &Ingestor{store: store}
}

// IngestBatch validates and persists an ordered batch of parsed lines.
// Duplicate lines (same user, amount and description as a stored transaction)
// are skipped but still surfaced in the result, and do not count toward
// total_transactions.
func (i *Ingestor) IngestBatch(ctx context.Context, userID, sessionID string, lines []statement.ParsedLine) (*BatchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("ingest: missing user ID")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("ingest: missing session ID")
	}

	result := &BatchResult{}
	var earliest, latest time.Time

	for n, line := range lines {
		if err := validateLine(line); err != nil {
			result.Failures = append(result.Failures, LineFailure{Line: n + 1, Reason: err.Error()})
			continue
		}

		txn := &model.Transaction{
			ID:           uuid.NewString(),
			UserID:       userID,
			SessionID:    sessionID,
			Date:         line.Date,
			Description:  line.Description,
			Reference:    line.Reference,
			Amount:       line.Amount,
			Balance:      line.Balance,
			OriginalText: line.OriginalText,
			Status:       model.TransactionPending,
		}
		txn.Hash = txn.GenerateHash()

		stored, inserted, err := i.store.InsertTransaction(ctx, txn)
		if err != nil {
			result.Failures = append(result.Failures, LineFailure{Line: n + 1, Reason: err.Error()})
			continue
		}

		result.Transactions = append(result.Transactions, *stored)

		if earliest.IsZero() || line.Date.Before(earliest) {
			earliest = line.Date
		}
		if line.Date.After(latest) {
			latest = line.Date
		}

		if !inserted {
			result.Duplicates++
			continue
		}

		result.Imported++
		result.Statistics.TotalTransactions++
		if line.Amount.IsNegative() {
			result.Statistics.TotalDebits = result.Statistics.TotalDebits.Add(line.Amount.Abs())
		} else {
			result.Statistics.TotalCredits = result.Statistics.TotalCredits.Add(line.Amount)
		}
	}

	if !earliest.IsZero() {
		result.Statistics.DateRangeDays = int(latest.Sub(earliest).Hours() / 24)
	}

	slog.Info("Ingested statement batch",
		"session", sessionID,
		"imported", result.Imported,
		"duplicates", result.Duplicates,
		"failed", len(result.Failures))

	return result, nil
}

// validateLine checks the per-line required fields.
func validateLine(line statement.ParsedLine) error {
	if line.Date.IsZero() {
		return fmt.Errorf("missing date")
	}
	if strings.TrimSpace(line.Description) == "" {
		return fmt.Errorf("missing description")
	}
	if line.Amount.Equal(decimal.Zero) {
		return fmt.Errorf("zero amount")
	}
	return nil
}
