// Package suggest turns qualifying recurrence groups into recurring-payment
// suggestions attached to an import session.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/homevault/reconcile/internal/model"
	"github.com/homevault/reconcile/internal/recur"

	"github.com/google/uuid"
)

// Store is the persistence surface the builder needs.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.ImportSession, error)
	SaveSuggestions(ctx context.Context, sessionID string, suggestions []model.RecurringPaymentSuggestion) error
}

// Builder constructs suggestions from recurrence groups.
type Builder struct {
	store Store
}

// NewBuilder creates a new suggestion builder.
func NewBuilder(store Store) *Builder {
	return &Builder{store: store}
}

// Build converts qualifying groups into pending suggestions.
func (b *Builder) Build(groups []recur.Group) []model.RecurringPaymentSuggestion {
	suggestions := make([]model.RecurringPaymentSuggestion, 0, len(groups))
	for i := range groups {
		suggestions = append(suggestions, b.buildOne(&groups[i]))
	}
	return suggestions
}

func (b *Builder) buildOne(group *recur.Group) model.RecurringPaymentSuggestion {
	payee := derivePayee(group)

	txIDs := make([]string, 0, len(group.Transactions))
	for _, txn := range group.Transactions {
		txIDs = append(txIDs, txn.ID)
	}

	suggestion := model.RecurringPaymentSuggestion{
		ID:             uuid.NewString(),
		Payee:          payee,
		Category:       group.Category,
		Subcategory:    group.Subcategory,
		RuleID:         group.RuleID,
		TransactionIDs: txIDs,
		Amount:         group.MedianAmount,
		AmountVariance: group.AmountVariance,
		Frequency:      group.Frequency,
		Confidence:     group.Confidence,
		Status:         model.SuggestionPending,
	}
	suggestion.SuggestedEntry = deriveEntry(payee, group)

	return suggestion
}

// Attach appends suggestions to the session, reusing any existing suggestion
// with the same group key so that re-running suggestion building on an
// unchanged transaction set is idempotent.
func (b *Builder) Attach(ctx context.Context, sessionID string, suggestions []model.RecurringPaymentSuggestion) ([]model.RecurringPaymentSuggestion, error) {
	sess, err := b.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session for suggestions: %w", err)
	}

	existing := make(map[string]int, len(sess.Suggestions))
	for i := range sess.Suggestions {
		existing[sess.Suggestions[i].GroupKey()] = i
	}

	merged := sess.Suggestions
	for _, s := range suggestions {
		if _, dup := existing[s.GroupKey()]; dup {
			continue
		}
		existing[s.GroupKey()] = len(merged)
		merged = append(merged, s)
	}

	if err := b.store.SaveSuggestions(ctx, sessionID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// derivePayee prefers the rule's provider, falling back to the dominant
// token run of the raw description.
func derivePayee(group *recur.Group) string {
	if group.Rule != nil && group.Rule.Provider != "" {
		return group.Rule.Provider
	}
	if group.Rule != nil && group.Rule.Name != "" {
		return group.Rule.Name
	}
	return titleCase(group.Payee)
}

// deriveEntry builds the downstream record template for the suggestion.
func deriveEntry(payee string, group *recur.Group) model.SuggestedEntry {
	entryType := "service"
	switch group.Category {
	case "utilities":
		entryType = "utility"
	case "entertainment", "fitness":
		entryType = "subscription"
	case "insurance":
		entryType = "insurance"
	case "telecom":
		entryType = "subscription"
	case "housing":
		entryType = "housing"
	}

	title := payee
	if group.Subcategory != "" {
		title = fmt.Sprintf("%s (%s)", payee, group.Subcategory)
	}

	return model.SuggestedEntry{
		Title:    title,
		Provider: payee,
		Type:     entryType,
	}
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
