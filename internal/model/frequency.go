package model

import "fmt"

// Frequency classifies the cadence of a recurring payment.
type Frequency string

// Frequency values.
const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
	FrequencyIrregular Frequency = "irregular"
)

// Validate reports whether the frequency is a known value.
func (f Frequency) Validate() error {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually, FrequencyIrregular:
		return nil
	}
	return fmt.Errorf("invalid frequency: %q", string(f))
}

// TypicalGapDays returns the nominal day spacing for the frequency, or 0 for
// irregular.
func (f Frequency) TypicalGapDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 90
	case FrequencyAnnually:
		return 365
	case FrequencyIrregular:
		return 0
	}
	return 0
}
