// Package rules resolves and seeds recurring-detection rule sets.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"
)

// Store is the persistence surface the resolver needs.
type Store interface {
	GetDefaultRuleSet(ctx context.Context) (*model.RuleSet, error)
	GetUserRuleSet(ctx context.Context, userID string) (*model.RuleSet, error)
	SaveRuleSet(ctx context.Context, rs *model.RuleSet) error
}

// Resolver picks the active rule set for a user: a personal override if one
// exists, otherwise the single system-wide default.
type Resolver struct {
	store Store
}

// NewResolver creates a new rule resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the rule set to use for the given user. It fails with
// ErrNoRuleSet only when neither an override nor a default exists.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*model.RuleSet, error) {
	if userID != "" {
		rs, err := r.store.GetUserRuleSet(ctx, userID)
		if err == nil {
			return rs, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to resolve user rule set: %w", err)
		}
	}

	rs, err := r.store.GetDefaultRuleSet(ctx)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, common.ErrNoRuleSet)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve default rule set: %w", err)
	}
	return rs, nil
}

// Seed installs the built-in default rule set if no default exists yet.
func (r *Resolver) Seed(ctx context.Context) error {
	_, err := r.store.GetDefaultRuleSet(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("failed to check default rule set: %w", err)
	}

	if err := r.store.SaveRuleSet(ctx, DefaultRuleSet()); err != nil {
		return fmt.Errorf("failed to seed default rule set: %w", err)
	}
	return nil
}
