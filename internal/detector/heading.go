package detector

import (
	"fmt"

	"github.com/raysh454/regress/internal/model"
)

// HeadingStructure checks the current heading outline on its own; it does
// not need a baseline. An empty outline is not evaluated.
type HeadingStructure struct{}

func (HeadingStructure) Name() string { return "heading_structure" }

func (HeadingStructure) Detect(in Input) []model.Warning {
	outline := in.Current.HeadingOutline
	if len(outline) == 0 {
		return nil
	}

	var warnings []model.Warning

	h1s := 0
	for _, level := range outline {
		if level == 1 {
			h1s++
		}
	}

	if in.Config.HeadingMissingH1 && h1s == 0 {
		warnings = append(warnings, model.Warning{
			Type:     model.WarningHeadingMissingH1,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("Document has %d headings but no H1", len(outline)),
		})
	}

	if in.Config.HeadingMultipleH1 && h1s > 1 {
		warnings = append(warnings, model.Warning{
			Type:     model.WarningHeadingMultipleH1,
			Severity: model.SeverityWarning,
			Message:  fmt.Sprintf("Document has %d H1 headings", h1s),
			After:    model.Float(float64(h1s)),
		})
	}

	if in.Config.HeadingSkippedLevel {
		if skips, from, to := skippedLevels(outline); skips > 0 {
			msg := fmt.Sprintf("Heading level skipped: H%d followed by H%d", from, to)
			if skips > 1 {
				msg += fmt.Sprintf(" (%d skips in total)", skips)
			}
			warnings = append(warnings, model.Warning{
				Type:     model.WarningHeadingSkippedLevel,
				Severity: model.SeverityNotice,
				Message:  msg,
				After:    model.Float(float64(skips)),
			})
		}
	}

	return warnings
}

// skippedLevels scans the outline once. A heading skips when it is more
// than one level deeper than the heading before it (H2 then H4); moving
// back up any number of levels is fine. It returns the number of skips and
// the first offending pair.
func skippedLevels(outline []int) (skips, from, to int) {
	for i := 1; i < len(outline); i++ {
		prev, cur := outline[i-1], outline[i]
		if cur > prev+1 {
			if skips == 0 {
				from, to = prev, cur
			}
			skips++
		}
	}
	return skips, from, to
}
