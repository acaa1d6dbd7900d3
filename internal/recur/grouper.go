// Package recur clusters transactions into recurring-payment candidates and
// infers their payment frequency.
package recur

import (
	"fmt"
	"sort"

	"github.com/homevault/reconcile/internal/model"

	"github.com/shopspring/decimal"
)

// Confidence shaping constants. A member above the minimum occurrence count
// adds a small bonus; an irregular cadence costs a fixed penalty. Members
// with no rule match contribute a neutral base confidence.
const (
	unmatchedMemberConfidence = 0.5
	extraMemberBonus          = 0.05
	maxExtraMemberBonus       = 0.15
	irregularPenalty          = 0.2
)

// Group is a cluster of transactions that plausibly belong to the same
// recurring payment.
type Group struct {
	Rule           *model.PatternRule
	Key            string
	RuleID         string
	Payee          string
	Category       string
	Subcategory    string
	Frequency      model.Frequency
	Transactions   []model.Transaction
	MedianAmount   decimal.Decimal
	AmountVariance decimal.Decimal
	Confidence     float64
}

// Grouper clusters matched (and unmatched-but-similar) transactions.
type Grouper struct{}

// NewGrouper creates a new recurrence grouper.
func NewGrouper() *Grouper {
	return &Grouper{}
}

// GroupTransactions clusters the given transactions by rule identity or
// normalized payee, filters outlier amounts, infers frequency from date
// spacing, and gates candidates on the minimum occurrence count. Only
// qualifying groups are returned.
func (g *Grouper) GroupTransactions(txns []model.Transaction, rs *model.RuleSet) []Group {
	buckets := make(map[string][]model.Transaction)
	order := make([]string, 0)

	for _, txn := range txns {
		key := groupKey(&txn, rs)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], txn)
	}

	var groups []Group
	for _, key := range order {
		group := g.buildGroup(key, buckets[key], rs)
		if group != nil {
			groups = append(groups, *group)
		}
	}
	return groups
}

func groupKey(txn *model.Transaction, rs *model.RuleSet) string {
	if txn.PatternMatched && txn.PatternID != "" {
		if rule := rs.FindRule(txn.PatternID); rule != nil {
			return fmt.Sprintf("rule|%s|%s", rule.ID, rule.Category)
		}
	}
	return "payee|" + model.NormalizeDescription(txn.Description)
}

func (g *Grouper) buildGroup(key string, members []model.Transaction, rs *model.RuleSet) *Group {
	if len(members) == 0 {
		return nil
	}

	group := &Group{Key: key}

	if first := members[0]; first.PatternMatched && first.PatternID != "" {
		if rule := rs.FindRule(first.PatternID); rule != nil {
			group.Rule = rule
			group.RuleID = rule.ID
			group.Category = rule.Category
			group.Subcategory = rule.Subcategory
		}
	}
	group.Payee = model.NormalizeDescription(members[0].Description)

	median := medianAmount(members)
	group.MedianAmount = median
	group.Transactions = filterByVariance(members, median, rs.Settings.AmountVarianceTolerance)
	group.AmountVariance = maxDeviation(group.Transactions, median)

	minOccurrences := model.DefaultMinOccurrences
	if group.Rule != nil && group.Rule.MinOccurrences > 0 {
		minOccurrences = group.Rule.MinOccurrences
	}
	if len(group.Transactions) < minOccurrences {
		return nil
	}

	sort.Slice(group.Transactions, func(i, j int) bool {
		return group.Transactions[i].Date.Before(group.Transactions[j].Date)
	})

	group.Frequency = ClassifyFrequency(dayGaps(group.Transactions), rs.Settings.FrequencyDetectionWindowDays)
	group.Confidence = g.groupConfidence(group, minOccurrences)

	return group
}

// groupConfidence combines member match confidences with the recurrence
// signal, clamped to [0,1].
func (g *Grouper) groupConfidence(group *Group, minOccurrences int) float64 {
	sum := 0.0
	for _, txn := range group.Transactions {
		if txn.PatternMatched {
			sum += txn.PatternConfidence
		} else {
			sum += unmatchedMemberConfidence
		}
	}
	confidence := sum / float64(len(group.Transactions))

	bonus := extraMemberBonus * float64(len(group.Transactions)-minOccurrences)
	if bonus > maxExtraMemberBonus {
		bonus = maxExtraMemberBonus
	}
	confidence += bonus

	if group.Frequency == model.FrequencyIrregular {
		confidence -= irregularPenalty
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// ClassifyFrequency infers a cadence from consecutive day gaps. Every gap
// must agree on the same nearest-fit frequency within the tolerance window;
// any disagreement or unfit gap yields irregular.
func ClassifyFrequency(gaps []int, windowDays int) model.Frequency {
	if len(gaps) == 0 {
		return model.FrequencyIrregular
	}

	overall := model.Frequency("")
	for _, gap := range gaps {
		f := classifyGap(gap, windowDays)
		if f == model.FrequencyIrregular {
			return model.FrequencyIrregular
		}
		if overall == "" {
			overall = f
		} else if overall != f {
			return model.FrequencyIrregular
		}
	}
	return overall
}

// classifyGap maps a single day gap to its nearest frequency, or irregular
// when no frequency fits within the window.
func classifyGap(gap, windowDays int) model.Frequency {
	best := model.FrequencyIrregular
	bestDist := windowDays + 1

	candidates := []struct {
		freq     model.Frequency
		min, max int
	}{
		{model.FrequencyWeekly, 7, 7},
		{model.FrequencyMonthly, 28, 31},
		{model.FrequencyQuarterly, 90, 90},
		{model.FrequencyAnnually, 365, 365},
	}

	for _, c := range candidates {
		dist := 0
		switch {
		case gap < c.min:
			dist = c.min - gap
		case gap > c.max:
			dist = gap - c.max
		}
		if dist < bestDist {
			bestDist = dist
			best = c.freq
		}
	}

	return best
}

// dayGaps returns consecutive day spacings for date-sorted transactions.
func dayGaps(txns []model.Transaction) []int {
	if len(txns) < 2 {
		return nil
	}
	gaps := make([]int, 0, len(txns)-1)
	for i := 1; i < len(txns); i++ {
		gaps = append(gaps, int(txns[i].Date.Sub(txns[i-1].Date).Hours()/24))
	}
	return gaps
}

// filterByVariance drops members whose amount deviates from the group median
// by more than the relative tolerance.
func filterByVariance(members []model.Transaction, median decimal.Decimal, tolerance float64) []model.Transaction {
	if median.IsZero() {
		return members
	}

	limit := median.Abs().Mul(decimal.NewFromFloat(tolerance))
	kept := make([]model.Transaction, 0, len(members))
	for _, txn := range members {
		if txn.Amount.Sub(median).Abs().LessThanOrEqual(limit) {
			kept = append(kept, txn)
		}
	}
	return kept
}

// medianAmount returns the median transaction amount of the members.
func medianAmount(members []model.Transaction) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(members))
	for i, txn := range members {
		amounts[i] = txn.Amount
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })

	mid := len(amounts) / 2
	if len(amounts)%2 == 1 {
		return amounts[mid]
	}
	return amounts[mid-1].Add(amounts[mid]).Div(decimal.NewFromInt(2))
}

// maxDeviation returns the largest absolute deviation from the median among
// the kept members.
func maxDeviation(members []model.Transaction, median decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for _, txn := range members {
		if d := txn.Amount.Sub(median).Abs(); d.GreaterThan(max) {
			max = d
		}
	}
	return max
}
