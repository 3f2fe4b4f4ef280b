package detector

import "fmt"

// Config holds detector thresholds and per-check switches. Detectors assume
// a Normalized config and never guard against out-of-range values.
type Config struct {
	LinkDropEnabled bool `json:"link_drop_enabled" mapstructure:"link_drop_enabled"`
	// LinkDropPercent fires link_drop at or above this percentage loss.
	LinkDropPercent float64 `json:"link_drop_percent" mapstructure:"link_drop_percent"`
	// LinkDropAbsolute fires link_drop at or above this many lost links.
	// Zero disables the absolute leg.
	LinkDropAbsolute int `json:"link_drop_absolute" mapstructure:"link_drop_absolute"`

	WordCountEnabled     bool    `json:"word_count_enabled" mapstructure:"word_count_enabled"`
	WordCountDropPercent float64 `json:"word_count_drop_percent" mapstructure:"word_count_drop_percent"`
	// WordCountMinAgeDays exempts documents younger than this, measured
	// from their original publish time.
	WordCountMinAgeDays int `json:"word_count_min_age_days" mapstructure:"word_count_min_age_days"`
	// CompareAverage uses the mean word count of the window as the baseline.
	CompareAverage bool `json:"compare_average" mapstructure:"compare_average"`

	HeadingMissingH1    bool `json:"heading_missing_h1" mapstructure:"heading_missing_h1"`
	HeadingMultipleH1   bool `json:"heading_multiple_h1" mapstructure:"heading_multiple_h1"`
	HeadingSkippedLevel bool `json:"heading_skipped_level" mapstructure:"heading_skipped_level"`
}

// MaxWordCountMinAgeDays caps the age exemption so it still converts to a time.Duration.
const MaxWordCountMinAgeDays = 36500

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		LinkDropEnabled:      true,
		LinkDropPercent:      30,
		LinkDropAbsolute:     3,
		WordCountEnabled:     true,
		WordCountDropPercent: 30,
		WordCountMinAgeDays:  30,
		CompareAverage:       false,
		HeadingMissingH1:     true,
		HeadingMultipleH1:    true,
		HeadingSkippedLevel:  true,
	}
}

// Normalize clamps thresholds into their valid ranges and returns the
// clamped config plus a description of every adjustment made.
func (c Config) Normalize() (Config, []string) {
	var adjusted []string

	clampPercent := func(name string, v *float64) {
		switch {
		case *v < 0:
			adjusted = append(adjusted, fmt.Sprintf("%s %.2f raised to 0", name, *v))
			*v = 0
		case *v > 100:
			adjusted = append(adjusted, fmt.Sprintf("%s %.2f lowered to 100", name, *v))
			*v = 100
		}
	}
	clampNonNegative := func(name string, v *int) {
		if *v < 0 {
			adjusted = append(adjusted, fmt.Sprintf("%s %d raised to 0", name, *v))
			*v = 0
		}
	}

	clampPercent("link_drop_percent", &c.LinkDropPercent)
	clampPercent("word_count_drop_percent", &c.WordCountDropPercent)
	clampNonNegative("link_drop_absolute", &c.LinkDropAbsolute)
	clampNonNegative("word_count_min_age_days", &c.WordCountMinAgeDays)
	if c.WordCountMinAgeDays > MaxWordCountMinAgeDays {
		adjusted = append(adjusted, fmt.Sprintf("word_count_min_age_days %d lowered to %d", c.WordCountMinAgeDays, MaxWordCountMinAgeDays))
		c.WordCountMinAgeDays = MaxWordCountMinAgeDays
	}

	return c, adjusted
}
