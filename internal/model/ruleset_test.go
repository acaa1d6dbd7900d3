package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRule(id string, active bool) PatternRule {
	return PatternRule{
		ID:                id,
		Name:              id,
		Category:          "utilities",
		Patterns:          []string{id},
		ExpectedFrequency: FrequencyMonthly,
		MinOccurrences:    DefaultMinOccurrences,
		Active:            active,
	}
}

func TestRuleSetValidate(t *testing.T) {
	rs := &RuleSet{
		Name:      "test",
		IsDefault: true,
		Rules: map[string][]PatternRule{
			"utilities": {testRule("gas", true)},
		},
	}
	require.NoError(t, rs.Validate())

	t.Run("default cannot be user scoped", func(t *testing.T) {
		bad := *rs
		bad.CustomUser = "user-1"
		assert.Error(t, bad.Validate())
	})

	t.Run("rule without patterns rejected", func(t *testing.T) {
		bad := &RuleSet{
			Name: "test",
			Rules: map[string][]PatternRule{
				"utilities": {{ID: "gas", Name: "gas", Category: "utilities", ExpectedFrequency: FrequencyMonthly, MinOccurrences: 1}},
			},
		}
		assert.Error(t, bad.Validate())
	})

	t.Run("rule without occurrences rejected", func(t *testing.T) {
		r := testRule("gas", true)
		r.MinOccurrences = 0
		bad := &RuleSet{Name: "test", Rules: map[string][]PatternRule{"utilities": {r}}}
		assert.Error(t, bad.Validate())
	})
}

func TestActiveRules(t *testing.T) {
	rs := &RuleSet{
		Name: "test",
		Rules: map[string][]PatternRule{
			"utilities": {testRule("gas", true), testRule("water", false)},
			"telecom":   {testRule("broadband", true)},
		},
	}

	active := rs.ActiveRules()
	require.Len(t, active, 2)
	for _, r := range active {
		assert.True(t, r.Active)
	}
}

func TestFindRule(t *testing.T) {
	rs := &RuleSet{
		Name: "test",
		Rules: map[string][]PatternRule{
			"utilities": {testRule("gas", true)},
		},
	}

	assert.NotNil(t, rs.FindRule("gas"))
	assert.Nil(t, rs.FindRule("missing"))
}

func TestFrequencyValidate(t *testing.T) {
	for _, f := range []Frequency{FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually, FrequencyIrregular} {
		assert.NoError(t, f.Validate())
	}
	assert.Error(t, Frequency("fortnightly").Validate())
}

func TestFrequencyTypicalGapDays(t *testing.T) {
	assert.Equal(t, 7, FrequencyWeekly.TypicalGapDays())
	assert.Equal(t, 30, FrequencyMonthly.TypicalGapDays())
	assert.Equal(t, 90, FrequencyQuarterly.TypicalGapDays())
	assert.Equal(t, 365, FrequencyAnnually.TypicalGapDays())
	assert.Zero(t, FrequencyIrregular.TypicalGapDays())
}

func TestSuggestionGroupKey(t *testing.T) {
	a := RecurringPaymentSuggestion{Payee: "British Gas", Category: "utilities", Frequency: FrequencyMonthly}
	b := RecurringPaymentSuggestion{Payee: "BRITISH  GAS", Category: "utilities", Frequency: FrequencyMonthly}
	c := RecurringPaymentSuggestion{Payee: "British Gas", Category: "utilities", Frequency: FrequencyQuarterly}

	assert.Equal(t, a.GroupKey(), b.GroupKey())
	assert.NotEqual(t, a.GroupKey(), c.GroupKey())
}
