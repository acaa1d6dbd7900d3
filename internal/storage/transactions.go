package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"

	"github.com/shopspring/decimal"
)

// InsertTransaction persists a transaction, deduplicating on the user-scoped
// fingerprint. If a row with the same (user, hash) already exists the insert
// is a no-op on the transactions table and the existing row is returned with
// inserted = false; either way the transaction is linked into the session's
// view. A losing concurrent writer lands on the same path via the UNIQUE
// constraint.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if txn != nil && txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	if err := validateTransaction(txn); err != nil {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance any
	if txn.Balance != nil {
		balance = txn.Balance.String()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, session_id, date, description, reference,
			amount, balance, original_text, tx_hash, status,
			pattern_matched, pattern_confidence, pattern_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, tx_hash) DO NOTHING
	`,
		txn.ID, txn.UserID, txn.SessionID, txn.Date, txn.Description, txn.Reference,
		txn.Amount.String(), balance, txn.OriginalText, txn.Hash, string(txn.Status),
		boolToInt(txn.PatternMatched), txn.PatternConfidence, txn.PatternID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check transaction insert: %w", err)
	}

	stored := txn
	inserted := affected > 0
	if !inserted {
		// Already imported; surface the canonical row
		row := tx.QueryRowContext(ctx, transactionSelect+" WHERE user_id = ? AND tx_hash = ?", txn.UserID, txn.Hash)
		stored, err = scanTransaction(row)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load duplicate transaction: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO session_transactions (session_id, transaction_id) VALUES (?, ?)
	`, txn.SessionID, stored.ID); err != nil {
		return nil, false, fmt.Errorf("failed to link transaction to session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction insert: %w", err)
	}

	return stored, inserted, nil
}

// GetTransactionByID retrieves a transaction by its ID.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, transactionSelect+" WHERE id = ?", id)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return txn, nil
}

// GetTransactionByHash looks up a user's transaction by fingerprint, for
// dedup checks.
func (s *SQLiteStorage) GetTransactionByHash(ctx context.Context, userID, hash string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(hash, "hash"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, transactionSelect+" WHERE user_id = ? AND tx_hash = ?", userID, hash)
	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction hash %s: %w", hash, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction by hash: %w", err)
	}
	return txn, nil
}

// ListTransactionsBySession returns every transaction surfaced in a session's
// view, including canonical rows first stored by an earlier upload.
func (s *SQLiteStorage) ListTransactionsBySession(ctx context.Context, sessionID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	query := `
		SELECT t.id, t.user_id, t.session_id, t.date, t.description, t.reference,
		       t.amount, t.balance, t.original_text, t.tx_hash, t.status,
		       t.record_created, t.created_record_id, t.created_record_domain,
		       t.ignored_reason, t.ignored_at,
		       t.pattern_matched, t.pattern_confidence, t.pattern_id
		FROM transactions t
		JOIN session_transactions st ON st.transaction_id = t.id
		WHERE st.session_id = ?
		ORDER BY t.date ASC, t.id ASC`

	return s.queryTransactions(ctx, query, sessionID)
}

// ListTransactionsByUserDateRange returns a user's transactions within
// [start, end], ordered by date.
func (s *SQLiteStorage) ListTransactionsByUserDateRange(ctx context.Context, userID string, start, end time.Time) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %v before start %v", ErrInvalidDateRange, end, start)
	}

	query := transactionSelect + ` WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC, id ASC`
	return s.queryTransactions(ctx, query, userID, start, end)
}

// ListTransactionsByUserStatus returns a user's transactions in a given
// lifecycle status.
func (s *SQLiteStorage) ListTransactionsByUserStatus(ctx context.Context, userID string, status model.TransactionStatus) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}

	query := transactionSelect + ` WHERE user_id = ? AND status = ? ORDER BY date ASC, id ASC`
	return s.queryTransactions(ctx, query, userID, string(status))
}

// ApplyPatternMatch records the winning rule for a transaction.
func (s *SQLiteStorage) ApplyPatternMatch(ctx context.Context, txID, ruleID string, confidence float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidTransaction)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET pattern_matched = 1, pattern_confidence = ?, pattern_id = ?
		WHERE id = ?
	`, confidence, ruleID, txID)
	if err != nil {
		return fmt.Errorf("failed to apply pattern match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check pattern match update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", txID, common.ErrNotFound)
	}
	return nil
}

// MarkRecordCreated transitions a pending transaction to record_created.
// The transition is terminal; any other starting status is rejected.
func (s *SQLiteStorage) MarkRecordCreated(ctx context.Context, txID, recordID, recordDomain string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return err
	}
	if err := validateString(recordDomain, "recordDomain"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, record_created = 1, created_record_id = ?, created_record_domain = ?
		WHERE id = ? AND status = ?
	`, string(model.TransactionRecordCreated), recordID, recordDomain, txID, string(model.TransactionPending))
	if err != nil {
		return fmt.Errorf("failed to mark record created: %w", err)
	}
	return s.checkTransition(ctx, res, txID)
}

// IgnoreTransaction transitions a pending transaction to ignored.
func (s *SQLiteStorage) IgnoreTransaction(ctx context.Context, txID, reason string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, ignored_reason = ?, ignored_at = ?
		WHERE id = ? AND status = ?
	`, string(model.TransactionIgnored), reason, at.UTC(), txID, string(model.TransactionPending))
	if err != nil {
		return fmt.Errorf("failed to ignore transaction: %w", err)
	}
	return s.checkTransition(ctx, res, txID)
}

// UndoIgnore returns an ignored transaction to pending, clearing both ignore
// fields. This is the only reverse transition in the lifecycle.
func (s *SQLiteStorage) UndoIgnore(ctx context.Context, txID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, ignored_reason = NULL, ignored_at = NULL
		WHERE id = ? AND status = ?
	`, string(model.TransactionPending), txID, string(model.TransactionIgnored))
	if err != nil {
		return fmt.Errorf("failed to undo ignore: %w", err)
	}
	return s.checkTransition(ctx, res, txID)
}

// checkTransition maps a zero-row conditional update to not-found or an
// invalid transition depending on whether the row exists.
func (s *SQLiteStorage) checkTransition(ctx context.Context, res sql.Result, txID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition: %w", err)
	}
	if affected > 0 {
		return nil
	}

	txn, err := s.GetTransactionByID(ctx, txID)
	if err != nil {
		return err
	}
	return fmt.Errorf("transaction %s is %s: %w", txID, txn.Status, common.ErrInvalidTransition)
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

const transactionSelect = `
	SELECT id, user_id, session_id, date, description, reference,
	       amount, balance, original_text, tx_hash, status,
	       record_created, created_record_id, created_record_domain,
	       ignored_reason, ignored_at,
	       pattern_matched, pattern_confidence, pattern_id
	FROM transactions`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var reference, balance, originalText, status sql.NullString
	var createdRecordID, createdRecordDomain, ignoredReason, patternID sql.NullString
	var ignoredAt sql.NullTime
	var amount string
	var recordCreated, patternMatched int

	err := row.Scan(
		&txn.ID, &txn.UserID, &txn.SessionID, &txn.Date, &txn.Description, &reference,
		&amount, &balance, &originalText, &txn.Hash, &status,
		&recordCreated, &createdRecordID, &createdRecordDomain,
		&ignoredReason, &ignoredAt,
		&patternMatched, &txn.PatternConfidence, &patternID,
	)
	if err != nil {
		return nil, err
	}

	txn.Reference = reference.String
	txn.OriginalText = originalText.String
	txn.Status = model.TransactionStatus(status.String)
	txn.RecordCreated = recordCreated != 0
	txn.CreatedRecordID = createdRecordID.String
	txn.CreatedRecordDomain = createdRecordDomain.String
	txn.IgnoredReason = ignoredReason.String
	txn.PatternMatched = patternMatched != 0
	txn.PatternID = patternID.String

	if ignoredAt.Valid {
		t := ignoredAt.Time
		txn.IgnoredAt = &t
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	if balance.Valid {
		b, err := decimal.NewFromString(balance.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance %q: %w", balance.String, err)
		}
		txn.Balance = &b
	}

	return &txn, nil
}
