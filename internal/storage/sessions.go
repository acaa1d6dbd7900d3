package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"

	"github.com/shopspring/decimal"
)

// CreateSession persists a new import session. Missing expiry defaults to
// creation time plus the retention TTL.
func (s *SQLiteStorage) CreateSession(ctx context.Context, sess *model.ImportSession) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(sess); err != nil {
		return err
	}

	now := time.Now().UTC()
	if sess.ExpiresAt.IsZero() {
		sess.ExpiresAt = now.Add(model.DefaultSessionTTL)
	}

	var periodStart, periodEnd any
	if sess.StatementPeriod != nil {
		periodStart = sess.StatementPeriod.Start
		periodEnd = sess.StatementPeriod.End
	}

	suggestionsJSON, err := marshalSuggestions(sess.Suggestions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, filename, file_size, file_hash, status,
			processing_stage, error_message, bank_name, account_number,
			period_start, period_end,
			stats_total_transactions, stats_recurring_detected,
			stats_date_range_days, stats_total_debits, stats_total_credits,
			suggestions, expires_at, auto_cleanup, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sess.ID, sess.UserID, sess.Filename, sess.FileSize, sess.FileHash, string(sess.Status),
		sess.ProcessingStage, sess.ErrorMessage, sess.BankName, sess.AccountNumber,
		periodStart, periodEnd,
		sess.Statistics.TotalTransactions, sess.Statistics.RecurringDetected,
		sess.Statistics.DateRangeDays, sess.Statistics.TotalDebits.String(), sess.Statistics.TotalCredits.String(),
		suggestionsJSON, sess.ExpiresAt, boolToInt(sess.AutoCleanup), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", sess.ID, err)
	}

	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*model.ImportSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, sessionSelect+" WHERE id = ?", id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessionsByUser returns a user's sessions, optionally filtered by
// status, most recent first.
func (s *SQLiteStorage) ListSessionsByUser(ctx context.Context, userID string, status *model.SessionStatus) ([]model.ImportSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := sessionSelect + " WHERE user_id = ?"
	args := []any{userID}
	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []model.ImportSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// UpdateSessionStatus moves a session from one status to another. The update
// is conditional on the current status so concurrent writers cannot race past
// the state machine; a stale precondition yields ErrInvalidTransition.
func (s *SQLiteStorage) UpdateSessionStatus(ctx context.Context, id string, from, to model.SessionStatus, errorMessage string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), errorMessage, time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check session update: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("session %s is not %s: %w", id, from, common.ErrInvalidTransition)
	}
	return nil
}

// SetProcessingStage records advisory progress text for a session. The stage
// is not gated by the state machine.
func (s *SQLiteStorage) SetProcessingStage(ctx context.Context, id, stage string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET processing_stage = ?, updated_at = ? WHERE id = ?
	`, stage, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set processing stage: %w", err)
	}
	return nil
}

// UpdateSessionStatistics replaces a session's aggregate statistics.
func (s *SQLiteStorage) UpdateSessionStatistics(ctx context.Context, id string, stats model.SessionStatistics) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET stats_total_transactions = ?, stats_recurring_detected = ?,
		    stats_date_range_days = ?, stats_total_debits = ?,
		    stats_total_credits = ?, updated_at = ?
		WHERE id = ?
	`, stats.TotalTransactions, stats.RecurringDetected, stats.DateRangeDays,
		stats.TotalDebits.String(), stats.TotalCredits.String(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update session statistics: %w", err)
	}
	return nil
}

// SetSessionMetadata records statement metadata detected by the upstream parser.
func (s *SQLiteStorage) SetSessionMetadata(ctx context.Context, id, bankName, accountNumber string, period *model.StatementPeriod) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var periodStart, periodEnd any
	if period != nil {
		periodStart = period.Start
		periodEnd = period.End
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET bank_name = ?, account_number = ?, period_start = ?, period_end = ?, updated_at = ?
		WHERE id = ?
	`, bankName, accountNumber, periodStart, periodEnd, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set session metadata: %w", err)
	}
	return nil
}

// SaveSuggestions replaces the suggestion list attached to a session.
func (s *SQLiteStorage) SaveSuggestions(ctx context.Context, sessionID string, suggestions []model.RecurringPaymentSuggestion) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	suggestionsJSON, err := marshalSuggestions(suggestions)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET suggestions = ?, updated_at = ? WHERE id = ?
	`, suggestionsJSON, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to save suggestions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check suggestion save: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	return nil
}

// ResolveSuggestion terminally flips a pending suggestion to accepted or
// rejected. Resolution is atomic: a concurrent second resolution of the same
// suggestion sees the flipped status and gets ErrAlreadyResolved.
func (s *SQLiteStorage) ResolveSuggestion(ctx context.Context, sessionID string, index int, status model.SuggestionStatus) (*model.RecurringPaymentSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if status != model.SuggestionAccepted && status != model.SuggestionRejected {
		return nil, fmt.Errorf("cannot resolve suggestion to %q", string(status))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	suggestions, err := s.loadSuggestionsTx(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(suggestions) {
		return nil, fmt.Errorf("suggestion index %d: %w", index, common.ErrNotFound)
	}
	if suggestions[index].Status != model.SuggestionPending {
		return nil, fmt.Errorf("suggestion %d is %s: %w", index, suggestions[index].Status, common.ErrAlreadyResolved)
	}

	suggestions[index].Status = status

	if err := s.writeSuggestionsTx(ctx, tx, sessionID, suggestions); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit suggestion resolution: %w", err)
	}

	resolved := suggestions[index]
	return &resolved, nil
}

// ReopenSuggestion returns a resolved suggestion to pending. Used only to
// roll back an accept whose downstream record creation did not happen.
func (s *SQLiteStorage) ReopenSuggestion(ctx context.Context, sessionID string, index int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	suggestions, err := s.loadSuggestionsTx(ctx, tx, sessionID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(suggestions) {
		return fmt.Errorf("suggestion index %d: %w", index, common.ErrNotFound)
	}

	suggestions[index].Status = model.SuggestionPending

	if err := s.writeSuggestionsTx(ctx, tx, sessionID, suggestions); err != nil {
		return err
	}
	return tx.Commit()
}

// ExpireStale marks sessions past their expiry as expired. Sessions still
// processing are never reclaimed; completed, failed and expired sessions are
// left for DeleteExpired.
func (s *SQLiteStorage) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, updated_at = ?
		WHERE auto_cleanup = 1 AND expires_at < ? AND status = ?
	`, string(model.SessionExpired), now.UTC(), now.UTC(), string(model.SessionUploading))
	if err != nil {
		return 0, fmt.Errorf("failed to expire sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired sessions: %w", err)
	}
	return int(affected), nil
}

// DeleteExpired removes terminal sessions past their expiry along with their
// transactions. This is the only path that deletes transactions.
func (s *SQLiteStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE auto_cleanup = 1 AND expires_at < ? AND status IN (?, ?, ?)
	`, now.UTC(), string(model.SessionCompleted), string(model.SessionFailed), string(model.SessionExpired))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return int(affected), nil
}

func (s *SQLiteStorage) loadSuggestionsTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]model.RecurringPaymentSuggestion, error) {
	var suggestionsJSON sql.NullString
	err := tx.QueryRowContext(ctx, "SELECT suggestions FROM sessions WHERE id = ?", sessionID).Scan(&suggestionsJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestions: %w", err)
	}
	return unmarshalSuggestions(suggestionsJSON)
}

func (s *SQLiteStorage) writeSuggestionsTx(ctx context.Context, tx *sql.Tx, sessionID string, suggestions []model.RecurringPaymentSuggestion) error {
	suggestionsJSON, err := marshalSuggestions(suggestions)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET suggestions = ?, updated_at = ? WHERE id = ?
	`, suggestionsJSON, time.Now().UTC(), sessionID); err != nil {
		return fmt.Errorf("failed to write suggestions: %w", err)
	}
	return nil
}

const sessionSelect = `
	SELECT id, user_id, filename, file_size, file_hash, status,
	       processing_stage, error_message, bank_name, account_number,
	       period_start, period_end,
	       stats_total_transactions, stats_recurring_detected,
	       stats_date_range_days, stats_total_debits, stats_total_credits,
	       suggestions, expires_at, auto_cleanup, created_at, updated_at
	FROM sessions`

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.ImportSession, error) {
	var sess model.ImportSession
	var status string
	var fileHash, stage, errMsg, bankName, accountNumber, totalDebits, totalCredits sql.NullString
	var periodStart, periodEnd sql.NullTime
	var suggestionsJSON sql.NullString
	var autoCleanup int

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Filename, &sess.FileSize, &fileHash, &status,
		&stage, &errMsg, &bankName, &accountNumber,
		&periodStart, &periodEnd,
		&sess.Statistics.TotalTransactions, &sess.Statistics.RecurringDetected,
		&sess.Statistics.DateRangeDays, &totalDebits, &totalCredits,
		&suggestionsJSON, &sess.ExpiresAt, &autoCleanup, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.Status = model.SessionStatus(status)
	sess.FileHash = fileHash.String
	sess.ProcessingStage = stage.String
	sess.ErrorMessage = errMsg.String
	sess.BankName = bankName.String
	sess.AccountNumber = accountNumber.String
	sess.AutoCleanup = autoCleanup != 0

	if periodStart.Valid && periodEnd.Valid {
		sess.StatementPeriod = &model.StatementPeriod{
			Start: periodStart.Time,
			End:   periodEnd.Time,
		}
	}

	if totalDebits.Valid {
		if d, err := decimal.NewFromString(totalDebits.String); err == nil {
			sess.Statistics.TotalDebits = d
		}
	}
	if totalCredits.Valid {
		if c, err := decimal.NewFromString(totalCredits.String); err == nil {
			sess.Statistics.TotalCredits = c
		}
	}

	sess.Suggestions, err = unmarshalSuggestions(suggestionsJSON)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

func marshalSuggestions(suggestions []model.RecurringPaymentSuggestion) (string, error) {
	if len(suggestions) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(suggestions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	return string(data), nil
}

func unmarshalSuggestions(raw sql.NullString) ([]model.RecurringPaymentSuggestion, error) {
	if !raw.Valid || raw.String == "" || raw.String == "[]" {
		return nil, nil
	}
	var suggestions []model.RecurringPaymentSuggestion
	if err := json.Unmarshal([]byte(raw.String), &suggestions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal suggestions: %w", err)
	}
	return suggestions, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
