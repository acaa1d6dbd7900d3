package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/homevault/reconcile/internal/common"
	"github.com/homevault/reconcile/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuleStore struct {
	defaultSet *model.RuleSet
	userSets   map[string]*model.RuleSet
	saved      []*model.RuleSet
}

func newMemRuleStore() *memRuleStore {
	return &memRuleStore{userSets: make(map[string]*model.RuleSet)}
}

func (m *memRuleStore) GetDefaultRuleSet(context.Context) (*model.RuleSet, error) {
	if m.defaultSet == nil {
		return nil, fmt.Errorf("default rule set: %w", common.ErrNotFound)
	}
	return m.defaultSet, nil
}

func (m *memRuleStore) GetUserRuleSet(_ context.Context, userID string) (*model.RuleSet, error) {
	rs, ok := m.userSets[userID]
	if !ok {
		return nil, fmt.Errorf("rule set for user %s: %w", userID, common.ErrNotFound)
	}
	return rs, nil
}

func (m *memRuleStore) SaveRuleSet(_ context.Context, rs *model.RuleSet) error {
	m.saved = append(m.saved, rs)
	if rs.IsDefault {
		m.defaultSet = rs
	}
	if rs.CustomUser != "" {
		m.userSets[rs.CustomUser] = rs
	}
	return nil
}

func TestResolvePrefersUserOverride(t *testing.T) {
	store := newMemRuleStore()
	store.defaultSet = &model.RuleSet{ID: "default", Name: "default", IsDefault: true}
	store.userSets["user-1"] = &model.RuleSet{ID: "override", Name: "override", CustomUser: "user-1"}

	resolver := NewResolver(store)

	rs, err := resolver.Resolve(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "override", rs.ID)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	store := newMemRuleStore()
	store.defaultSet = &model.RuleSet{ID: "default", Name: "default", IsDefault: true}

	resolver := NewResolver(store)

	rs, err := resolver.Resolve(context.Background(), "user-without-override")
	require.NoError(t, err)
	assert.Equal(t, "default", rs.ID)
}

func TestResolveNoRuleSet(t *testing.T) {
	resolver := NewResolver(newMemRuleStore())

	_, err := resolver.Resolve(context.Background(), "user-1")
	assert.ErrorIs(t, err, common.ErrNoRuleSet)
}

func TestSeedInstallsDefaultOnce(t *testing.T) {
	store := newMemRuleStore()
	resolver := NewResolver(store)
	ctx := context.Background()

	require.NoError(t, resolver.Seed(ctx))
	require.Len(t, store.saved, 1)
	assert.True(t, store.saved[0].IsDefault)

	// A second seed is a no-op.
	require.NoError(t, resolver.Seed(ctx))
	assert.Len(t, store.saved, 1)
}

func TestDefaultRuleSetIsValid(t *testing.T) {
	rs := DefaultRuleSet()
	require.NoError(t, rs.Validate())
	assert.True(t, rs.IsDefault)
	assert.NotEmpty(t, rs.ActiveRules())
	assert.InDelta(t, 0.5, rs.Settings.MinConfidenceThreshold, 0.0001)
	assert.InDelta(t, 0.8, rs.Settings.FuzzyMatchThreshold, 0.0001)
	assert.InDelta(t, 0.10, rs.Settings.AmountVarianceTolerance, 0.0001)
	assert.Equal(t, 5, rs.Settings.FrequencyDetectionWindowDays)

	gas := rs.FindRule("utilities.british-gas")
	require.NotNil(t, gas)
	assert.Equal(t, model.FrequencyMonthly, gas.ExpectedFrequency)
	assert.Contains(t, gas.Patterns, "british gas")
}
