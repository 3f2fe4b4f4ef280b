package detector

import (
	"fmt"
	"time"

	"github.com/raysh454/regress/internal/model"
)

// WordCountDrop flags content shrinkage against the baseline. Short-form
// documents and documents younger than WordCountMinAgeDays are exempt.
type WordCountDrop struct{}

func (WordCountDrop) Name() string { return "word_count_drop" }

func (WordCountDrop) Detect(in Input) []model.Warning {
	if !in.Config.WordCountEnabled || in.Settings.IsShortForm || in.Baseline == nil {
		return nil
	}
	if !oldEnough(in.PublishedAt, in.Now, in.Config.WordCountMinAgeDays) {
		return nil
	}

	before := float64(in.Baseline.WordCount)
	basis := "the baseline"
	if in.Config.CompareAverage && len(in.Window) > 0 {
		before = meanWordCount(in.Window)
		basis = fmt.Sprintf("the average of %d snapshots", len(in.Window))
	}
	after := float64(in.Current.WordCount)

	if before <= 0 {
		return nil
	}
	drop := before - after
	if drop <= 0 || !reachesPercent(drop, before, in.Config.WordCountDropPercent) {
		return nil
	}

	return []model.Warning{{
		Type:     model.WarningWordCountDrop,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("Word count dropped %.0f%% (from %.0f to %.0f) compared to %s",
			drop*100/before, before, after, basis),
		Before:            model.Float(before),
		After:             model.Float(after),
		BaselineTimestamp: baselineTime(in.Baseline),
	}}
}

// oldEnough reports whether a document published at publishedAt is at least
// minDays old at now. An unknown publish time only passes when there is no
// age requirement.
func oldEnough(publishedAt, now time.Time, minDays int) bool {
	if minDays <= 0 {
		return true
	}
	if publishedAt.IsZero() {
		return false
	}
	return now.Sub(publishedAt) >= time.Duration(minDays)*24*time.Hour
}

func meanWordCount(window []model.Metrics) float64 {
	total := 0
	for _, m := range window {
		total += m.WordCount
	}
	return float64(total) / float64(len(window))
}
