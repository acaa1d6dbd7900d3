package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"
)

// SaveRuleSet inserts or updates a rule set. Partial unique indexes enforce
// that at most one set is the default and each user has at most one override;
// a violated constraint surfaces as ErrDuplicateEntry.
func (s *SQLiteStorage) SaveRuleSet(ctx context.Context, rs *model.RuleSet) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rs == nil {
		return fmt.Errorf("%w: ruleSet", ErrNilParameter)
	}
	if err := rs.Validate(); err != nil {
		return err
	}

	rulesJSON, err := json.Marshal(rs.Rules)
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	var customUser any
	if rs.CustomUser != "" {
		customUser = rs.CustomUser
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_sets (
			id, name, description, version, is_default, custom_user, rules,
			settings_min_confidence, settings_fuzzy_threshold,
			settings_amount_variance, settings_frequency_window,
			settings_require_sort_code, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			is_default = excluded.is_default,
			custom_user = excluded.custom_user,
			rules = excluded.rules,
			settings_min_confidence = excluded.settings_min_confidence,
			settings_fuzzy_threshold = excluded.settings_fuzzy_threshold,
			settings_amount_variance = excluded.settings_amount_variance,
			settings_frequency_window = excluded.settings_frequency_window,
			settings_require_sort_code = excluded.settings_require_sort_code,
			updated_at = excluded.updated_at
	`,
		rs.ID, rs.Name, rs.Description, rs.Version, boolToInt(rs.IsDefault), customUser, string(rulesJSON),
		rs.Settings.MinConfidenceThreshold, rs.Settings.FuzzyMatchThreshold,
		rs.Settings.AmountVarianceTolerance, rs.Settings.FrequencyDetectionWindowDays,
		boolToInt(rs.Settings.RequireUKSortCode), now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("rule set %q: %w", rs.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to save rule set: %w", err)
	}

	return nil
}

// GetDefaultRuleSet returns the single system-wide default rule set.
func (s *SQLiteStorage) GetDefaultRuleSet(ctx context.Context) (*model.RuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, ruleSetSelect+" WHERE is_default = 1")
	rs, err := scanRuleSet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("default rule set: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default rule set: %w", err)
	}
	return rs, nil
}

// GetUserRuleSet returns a user's personal override rule set.
func (s *SQLiteStorage) GetUserRuleSet(ctx context.Context, userID string) (*model.RuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, ruleSetSelect+" WHERE custom_user = ?", userID)
	rs, err := scanRuleSet(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule set for user %s: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user rule set: %w", err)
	}
	return rs, nil
}

// ListRuleSets returns every stored rule set, default first.
func (s *SQLiteStorage) ListRuleSets(ctx context.Context) ([]model.RuleSet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, ruleSetSelect+" ORDER BY is_default DESC, name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query rule sets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sets []model.RuleSet
	for rows.Next() {
		rs, err := scanRuleSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule set: %w", err)
		}
		sets = append(sets, *rs)
	}
	return sets, rows.Err()
}

const ruleSetSelect = `
	SELECT id, name, description, version, is_default, custom_user, rules,
	       settings_min_confidence, settings_fuzzy_threshold,
	       settings_amount_variance, settings_frequency_window,
	       settings_require_sort_code, created_at, updated_at
	FROM rule_sets`

func scanRuleSet(row rowScanner) (*model.RuleSet, error) {
	var rs model.RuleSet
	var description, customUser sql.NullString
	var rulesJSON string
	var isDefault, requireSortCode int

	err := row.Scan(
		&rs.ID, &rs.Name, &description, &rs.Version, &isDefault, &customUser, &rulesJSON,
		&rs.Settings.MinConfidenceThreshold, &rs.Settings.FuzzyMatchThreshold,
		&rs.Settings.AmountVarianceTolerance, &rs.Settings.FrequencyDetectionWindowDays,
		&requireSortCode, &rs.CreatedAt, &rs.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rs.Description = description.String
	rs.CustomUser = customUser.String
	rs.IsDefault = isDefault != 0
	rs.Settings.RequireUKSortCode = requireSortCode != 0

	if err := json.Unmarshal([]byte(rulesJSON), &rs.Rules); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	return &rs, nil
}
