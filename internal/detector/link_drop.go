package detector

import (
	"fmt"

	"github.com/raysh454/regress/internal/model"
)

// LinkDrop flags a loss of internal links against the baseline. The
// percentage and absolute thresholds are OR'd: either one firing is enough.
type LinkDrop struct{}

func (LinkDrop) Name() string { return "link_drop" }

func (LinkDrop) Detect(in Input) []model.Warning {
	if !in.Config.LinkDropEnabled || in.Baseline == nil {
		return nil
	}
	before := in.Baseline.InternalLinkCount
	after := in.Current.InternalLinkCount
	drop := before - after

	// A zero baseline has no meaningful percentage and cannot lose links.
	if before <= 0 || drop <= 0 {
		return nil
	}

	byPercent := reachesPercent(float64(drop), float64(before), in.Config.LinkDropPercent)
	byAbsolute := in.Config.LinkDropAbsolute > 0 && drop >= in.Config.LinkDropAbsolute
	if !byPercent && !byAbsolute {
		return nil
	}

	pct := float64(drop) * 100 / float64(before)
	return []model.Warning{{
		Type:     model.WarningLinkDrop,
		Severity: model.SeverityWarning,
		Message: fmt.Sprintf("Internal links dropped from %d to %d (-%d, %.0f%%) since %s",
			before, after, drop, pct, in.Baseline.Timestamp.Format("2006-01-02")),
		Before:            model.Float(float64(before)),
		After:             model.Float(float64(after)),
		BaselineTimestamp: baselineTime(in.Baseline),
	}}
}
