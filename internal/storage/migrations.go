package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS sessions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					filename TEXT NOT NULL,
					file_size INTEGER NOT NULL DEFAULT 0,
					file_hash TEXT,
					status TEXT NOT NULL,
					processing_stage TEXT,
					error_message TEXT,
					bank_name TEXT,
					account_number TEXT,
					period_start DATETIME,
					period_end DATETIME,
					stats_total_transactions INTEGER NOT NULL DEFAULT 0,
					stats_recurring_detected INTEGER NOT NULL DEFAULT 0,
					stats_date_range_days INTEGER NOT NULL DEFAULT 0,
					stats_total_debits TEXT NOT NULL DEFAULT '0',
					stats_total_credits TEXT NOT NULL DEFAULT '0',
					suggestions TEXT,
					expires_at DATETIME NOT NULL,
					auto_cleanup INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_sessions_user_status ON sessions(user_id, status)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					reference TEXT,
					amount TEXT NOT NULL,
					balance TEXT,
					original_text TEXT,
					tx_hash TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					record_created INTEGER NOT NULL DEFAULT 0,
					created_record_id TEXT,
					created_record_domain TEXT,
					ignored_reason TEXT,
					ignored_at DATETIME,
					pattern_matched INTEGER NOT NULL DEFAULT 0,
					pattern_confidence REAL NOT NULL DEFAULT 0,
					pattern_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, tx_hash)
				)`,
				`CREATE INDEX idx_transactions_session ON transactions(session_id)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_user_status ON transactions(user_id, status)`,

				`CREATE TABLE IF NOT EXISTS session_transactions (
					session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
					transaction_id TEXT NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
					PRIMARY KEY (session_id, transaction_id)
				)`,

				`CREATE TABLE IF NOT EXISTS rule_sets (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT,
					version TEXT NOT NULL DEFAULT '1',
					is_default INTEGER NOT NULL DEFAULT 0,
					custom_user TEXT,
					rules TEXT NOT NULL,
					settings_min_confidence REAL NOT NULL,
					settings_fuzzy_threshold REAL NOT NULL,
					settings_amount_variance REAL NOT NULL,
					settings_frequency_window INTEGER NOT NULL,
					settings_require_sort_code INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				// At most one default rule set system-wide
				`CREATE UNIQUE INDEX idx_rule_sets_default ON rule_sets(is_default) WHERE is_default = 1`,
				`CREATE UNIQUE INDEX idx_rule_sets_custom_user ON rule_sets(custom_user) WHERE custom_user IS NOT NULL AND custom_user != ''`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add retention and pattern lookup indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
				`CREATE INDEX IF NOT EXISTS idx_transactions_pattern ON transactions(pattern_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending migrations against the database.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		slog.Info("Applied migration",
			"version", m.Version,
			"description", m.Description)
	}

	return nil
}

// SchemaVersion returns the current schema version of the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
