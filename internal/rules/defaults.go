package rules

import "github.com/homevault/reconcile/internal/model"

// DefaultRuleSet returns the built-in UK-centric rule set used when no
// override exists. Rule sets are data: installations can replace this set
// without a redeploy.
func DefaultRuleSet() *model.RuleSet {
	return &model.RuleSet{
		ID:          "default-uk-v1",
		Name:        "UK recurring payments",
		Description: "Built-in detection rules for common UK household payees",
		Version:     "1",
		IsDefault:   true,
		Settings:    model.DefaultRuleSettings(),
		Rules: map[string][]model.PatternRule{
			"utilities": {
				rule("utilities.british-gas", "British Gas", "utilities", "gas", "British Gas",
					model.FrequencyMonthly, "british gas", "britishgas"),
				rule("utilities.edf", "EDF Energy", "utilities", "electricity", "EDF Energy",
					model.FrequencyMonthly, "edf energy", "edf"),
				rule("utilities.octopus", "Octopus Energy", "utilities", "electricity", "Octopus Energy",
					model.FrequencyMonthly, "octopus energy", "octopusenergy"),
				rule("utilities.thames-water", "Thames Water", "utilities", "water", "Thames Water",
					model.FrequencyMonthly, "thames water", "thameswater"),
				rule("utilities.severn-trent", "Severn Trent", "utilities", "water", "Severn Trent Water",
					model.FrequencyMonthly, "severn trent", "svrn trent"),
			},
			"telecom": {
				rule("telecom.bt", "BT", "telecom", "broadband", "BT Group",
					model.FrequencyMonthly, "bt group", "bt broadband", "bt internet"),
				rule("telecom.sky", "Sky", "telecom", "tv", "Sky UK",
					model.FrequencyMonthly, "sky digital", "sky subscription", "sky uk"),
				rule("telecom.virgin-media", "Virgin Media", "telecom", "broadband", "Virgin Media",
					model.FrequencyMonthly, "virgin media", "virginmedia"),
				rule("telecom.vodafone", "Vodafone", "telecom", "mobile", "Vodafone",
					model.FrequencyMonthly, "vodafone"),
				rule("telecom.ee", "EE", "telecom", "mobile", "EE Limited",
					model.FrequencyMonthly, "ee limited", "ee & t-mobile"),
				rule("telecom.o2", "O2", "telecom", "mobile", "O2 UK",
					model.FrequencyMonthly, "o2 uk", "o2 mobile"),
			},
			"entertainment": {
				rule("entertainment.netflix", "Netflix", "entertainment", "streaming", "Netflix",
					model.FrequencyMonthly, "netflix"),
				rule("entertainment.spotify", "Spotify", "entertainment", "streaming", "Spotify",
					model.FrequencyMonthly, "spotify"),
				rule("entertainment.disney-plus", "Disney+", "entertainment", "streaming", "Disney",
					model.FrequencyMonthly, "disney plus", "disney+"),
				rule("entertainment.amazon-prime", "Amazon Prime", "entertainment", "streaming", "Amazon",
					model.FrequencyMonthly, "amazon prime", "prime video", "amznprime"),
				rule("entertainment.tv-licence", "TV Licence", "entertainment", "licence", "TV Licensing",
					model.FrequencyMonthly, "tv licence", "tv license", "tvlicensing"),
			},
			"insurance": {
				rule("insurance.aviva", "Aviva", "insurance", "", "Aviva",
					model.FrequencyMonthly, "aviva"),
				rule("insurance.direct-line", "Direct Line", "insurance", "", "Direct Line",
					model.FrequencyMonthly, "direct line", "directline"),
				rule("insurance.admiral", "Admiral", "insurance", "car", "Admiral Group",
					model.FrequencyMonthly, "admiral insurance", "admiral group"),
			},
			"housing": {
				rule("housing.council-tax", "Council Tax", "housing", "tax", "",
					model.FrequencyMonthly, "council tax", "counciltax"),
				rule("housing.rent", "Rent", "housing", "rent", "",
					model.FrequencyMonthly, "rent payment", "standing order rent"),
			},
			"fitness": {
				rule("fitness.puregym", "PureGym", "fitness", "gym", "PureGym",
					model.FrequencyMonthly, "puregym", "pure gym"),
				rule("fitness.david-lloyd", "David Lloyd", "fitness", "gym", "David Lloyd Clubs",
					model.FrequencyMonthly, "david lloyd"),
			},
		},
	}
}

// rule builds a PatternRule with the standard defaults applied.
func rule(id, name, category, subcategory, provider string, freq model.Frequency, patterns ...string) model.PatternRule {
	return model.PatternRule{
		ID:                id,
		Name:              name,
		Category:          category,
		Subcategory:       subcategory,
		Provider:          provider,
		Patterns:          patterns,
		ExpectedFrequency: freq,
		ConfidenceBoost:   model.DefaultConfidenceBoost,
		MinOccurrences:    model.DefaultMinOccurrences,
		RegionSpecific:    true,
		Active:            true,
	}
}
