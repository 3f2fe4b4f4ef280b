// Package baseline picks the historical snapshot a new snapshot is compared
// against.
package baseline

import (
	"fmt"
	"strings"

	"github.com/raysh454/regress/internal/model"
)

// Policy selects which retained snapshot serves as the baseline.
type Policy string

const (
	// PolicyOldest compares against the earliest snapshot still in the
	// rolling window, so slow creeping regressions stay visible.
	PolicyOldest Policy = "oldest"

	// PolicyPrevious compares against the immediately preceding snapshot.
	PolicyPrevious Policy = "previous"
)

// ParsePolicy maps a config string onto a Policy; "" means PolicyOldest.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyOldest:
		return PolicyOldest, nil
	case PolicyPrevious:
		return PolicyPrevious, nil
	default:
		return "", fmt.Errorf("baseline: unknown policy %q", s)
	}
}

// Window returns the history the current snapshot is compared against:
// everything retained before it. When the newest entry is the current
// content itself (an unchanged re-save) that entry is left out.
func Window(history []model.Metrics, current model.Metrics) []model.Metrics {
	if n := len(history); n > 0 && history[n-1].ContentHash == current.ContentHash {
		return history[:n-1]
	}
	return history
}

// Select returns the baseline for current under the oldest-retained policy,
// or nil when there is nothing to compare against.
func Select(history []model.Metrics, current model.Metrics) *model.Metrics {
	return SelectWithPolicy(PolicyOldest, history, current)
}

// SelectWithPolicy is Select with an explicit policy.
func SelectWithPolicy(policy Policy, history []model.Metrics, current model.Metrics) *model.Metrics {
	window := Window(history, current)
	if len(window) == 0 {
		return nil
	}

	var picked model.Metrics
	switch policy {
	case PolicyPrevious:
		picked = window[len(window)-1]
	default:
		picked = window[0]
	}
	b := picked.Clone()
	return &b
}
