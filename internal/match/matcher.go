// Package match scores transaction descriptions against pattern rules.
package match

import (
	"strings"

	"github.com/homevault/reconcile/internal/model"
)

// Result is a winning pattern match for one transaction description.
type Result struct {
	Rule           *model.PatternRule
	RuleID         string
	MatchedPattern string
	Confidence     float64
}

// Matcher evaluates descriptions against a resolved rule set.
type Matcher struct{}

// NewMatcher creates a new pattern matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match scores a description against every active rule in the set and
// returns the best match, or nil when nothing clears the rule set's minimum
// confidence threshold. No match is a valid outcome, not an error.
func (m *Matcher) Match(description string, rs *model.RuleSet) *Result {
	normalized := model.NormalizeDescription(description)
	if normalized == "" {
		return nil
	}

	var best *Result
	for _, candidate := range rs.ActiveRules() {
		r := candidate
		score, matched := m.scoreRule(normalized, &r, rs.Settings.FuzzyMatchThreshold)
		if matched == "" {
			continue
		}

		score = clamp(score + r.ConfidenceBoost)
		if score < rs.Settings.MinConfidenceThreshold {
			continue
		}

		if best == nil || score > best.Confidence ||
			(score == best.Confidence && len(matched) > len(best.MatchedPattern)) {
			best = &Result{
				Rule:           &r,
				RuleID:         r.ID,
				MatchedPattern: matched,
				Confidence:     score,
			}
		}
	}

	return best
}

// scoreRule returns the base score for the best pattern in the rule: 1.0 for
// an exact substring hit, otherwise the best fuzzy similarity at or above the
// threshold. An empty matched pattern means no hit.
func (m *Matcher) scoreRule(normalized string, r *model.PatternRule, fuzzyThreshold float64) (float64, string) {
	bestScore := 0.0
	bestPattern := ""

	for _, pattern := range r.Patterns {
		p := strings.ToLower(strings.TrimSpace(pattern))
		if p == "" {
			continue
		}

		if strings.Contains(normalized, p) {
			// Exact hit wins outright; prefer the longest such pattern
			if bestScore < 1.0 || len(p) > len(bestPattern) {
				bestScore = 1.0
				bestPattern = p
			}
			continue
		}
		if bestScore >= 1.0 {
			continue
		}

		similarity := diceSimilarity(normalized, p)
		if similarity >= fuzzyThreshold && similarity > bestScore {
			bestScore = similarity
			bestPattern = p
		}
	}

	return bestScore, bestPattern
}

// Apply records a match result onto a transaction.
func (r *Result) Apply(txn *model.Transaction) {
	txn.PatternMatched = true
	txn.PatternConfidence = r.Confidence
	txn.PatternID = r.RuleID
}

// diceSimilarity computes the Sørensen–Dice coefficient over character
// bigrams of the two strings, in [0,1].
func diceSimilarity(a, b string) float64 {
	aBigrams := bigrams(a)
	bBigrams := bigrams(b)
	if len(aBigrams) == 0 || len(bBigrams) == 0 {
		if a == b {
			return 1.0
		}
		return 0.0
	}

	counts := make(map[string]int, len(aBigrams))
	for _, bg := range aBigrams {
		counts[bg]++
	}

	overlap := 0
	for _, bg := range bBigrams {
		if counts[bg] > 0 {
			counts[bg]--
			overlap++
		}
	}

	return 2.0 * float64(overlap) / float64(len(aBigrams)+len(bBigrams))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
