package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SuggestionStatus tracks the resolution state of a recurring-payment
// suggestion. Accepted and rejected are terminal.
type SuggestionStatus string

// Suggestion status values.
const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccepted SuggestionStatus = "accepted"
	SuggestionRejected SuggestionStatus = "rejected"
)

// Validate reports whether the status is a known value.
func (s SuggestionStatus) Validate() error {
	switch s {
	case SuggestionPending, SuggestionAccepted, SuggestionRejected:
		return nil
	}
	return fmt.Errorf("invalid suggestion status: %q", string(s))
}

// SuggestedEntry is the downstream record template derived from a rule and
// category.
type SuggestedEntry struct {
	Title    string `json:"title"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

// RecurringPaymentSuggestion is a proposed recurring bill inferred from a
// cluster of matching transactions, pending user confirmation.
type RecurringPaymentSuggestion struct {
	ID             string           `json:"id"`
	Payee          string           `json:"payee"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory,omitempty"`
	RuleID         string           `json:"rule_id,omitempty"`
	TransactionIDs []string         `json:"transaction_ids"`
	Amount         decimal.Decimal  `json:"amount"`
	AmountVariance decimal.Decimal  `json:"amount_variance"`
	Frequency      Frequency        `json:"frequency"`
	Confidence     float64          `json:"confidence"`
	SuggestedEntry SuggestedEntry   `json:"suggested_entry"`
	Status         SuggestionStatus `json:"status"`
}

// GroupKey identifies the cluster this suggestion was built from. Rebuilding
// suggestions for an unchanged transaction set reuses existing suggestions
// with the same key.
func (s *RecurringPaymentSuggestion) GroupKey() string {
	return fmt.Sprintf("%s|%s|%s", NormalizeDescription(s.Payee), s.Category, s.Frequency)
}

// AmountPattern describes the observed amounts behind a suggestion.
type AmountPattern struct {
	TypicalAmount decimal.Decimal `json:"typical_amount"`
	Variance      decimal.Decimal `json:"variance"`
	Currency      string          `json:"currency"`
}

// ImportMetadata is attached to every downstream record created from an
// accepted suggestion.
type ImportMetadata struct {
	Source                string        `json:"source"`
	ImportSessionID       string        `json:"import_session_id"`
	OriginalPayee         string        `json:"original_payee"`
	DetectedFrequency     Frequency     `json:"detected_frequency"`
	AmountPattern         AmountPattern `json:"amount_pattern"`
	ConfidenceScore       float64       `json:"confidence_score"`
	CreatedFromSuggestion bool          `json:"created_from_suggestion"`
}
