package model

import (
	"fmt"
	"time"
)

// Default values for pattern rules.
const (
	DefaultConfidenceBoost = 0.1
	DefaultMinOccurrences  = 2
)

// PatternRule maps matchable keyword substrings to a category and provider.
type PatternRule struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Subcategory       string    `json:"subcategory,omitempty"`
	Provider          string    `json:"provider,omitempty"`
	Patterns          []string  `json:"patterns"`
	ExpectedFrequency Frequency `json:"expected_frequency"`
	ConfidenceBoost   float64   `json:"confidence_boost"`
	MinOccurrences    int       `json:"min_occurrences"`
	RegionSpecific    bool      `json:"region_specific"`
	Active            bool      `json:"active"`
}

// Validate checks a pattern rule's required fields and ranges.
func (r *PatternRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("pattern rule: missing name")
	}
	if len(r.Patterns) == 0 {
		return fmt.Errorf("pattern rule %q: no patterns", r.Name)
	}
	if r.Category == "" {
		return fmt.Errorf("pattern rule %q: missing category", r.Name)
	}
	if r.MinOccurrences < 1 {
		return fmt.Errorf("pattern rule %q: min_occurrences must be at least 1", r.Name)
	}
	if err := r.ExpectedFrequency.Validate(); err != nil {
		return fmt.Errorf("pattern rule %q: %w", r.Name, err)
	}
	return nil
}

// RuleSettings holds the tunable thresholds shared by a rule set.
type RuleSettings struct {
	MinConfidenceThreshold       float64 `json:"min_confidence_threshold"`
	FuzzyMatchThreshold          float64 `json:"fuzzy_match_threshold"`
	AmountVarianceTolerance      float64 `json:"amount_variance_tolerance"`
	FrequencyDetectionWindowDays int     `json:"frequency_detection_window_days"`
	RequireUKSortCode            bool    `json:"require_uk_sort_code"`
}

// DefaultRuleSettings returns the thresholds used when a rule set does not
// override them.
func DefaultRuleSettings() RuleSettings {
	return RuleSettings{
		MinConfidenceThreshold:       0.5,
		FuzzyMatchThreshold:          0.8,
		AmountVarianceTolerance:      0.10,
		FrequencyDetectionWindowDays: 5,
	}
}

// RuleSet is a named, versioned collection of pattern rules grouped by
// category. At most one rule set system-wide is the default; any number of
// per-user override sets may exist.
type RuleSet struct {
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Rules       map[string][]PatternRule `json:"rules"`
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Version     string                   `json:"version"`
	CustomUser  string                   `json:"custom_user,omitempty"`
	Settings    RuleSettings             `json:"settings"`
	IsDefault   bool                     `json:"is_default"`
}

// Validate checks the rule set and every embedded rule.
func (rs *RuleSet) Validate() error {
	if rs.Name == "" {
		return fmt.Errorf("rule set: missing name")
	}
	if rs.IsDefault && rs.CustomUser != "" {
		return fmt.Errorf("rule set %q: default set cannot have a custom user", rs.Name)
	}
	for category, rules := range rs.Rules {
		for i := range rules {
			if err := rules[i].Validate(); err != nil {
				return fmt.Errorf("category %q: %w", category, err)
			}
		}
	}
	return nil
}

// ActiveRules returns all active rules across every category group.
func (rs *RuleSet) ActiveRules() []PatternRule {
	var out []PatternRule
	for _, rules := range rs.Rules {
		for _, r := range rules {
			if r.Active {
				out = append(out, r)
			}
		}
	}
	return out
}

// FindRule returns the rule with the given ID, or nil.
func (rs *RuleSet) FindRule(id string) *PatternRule {
	for _, rules := range rs.Rules {
		for i := range rules {
			if rules[i].ID == id {
				return &rules[i]
			}
		}
	}
	return nil
}
