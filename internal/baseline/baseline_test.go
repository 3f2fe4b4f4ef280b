package baseline_test

import (
	"testing"
	"time"

	"github.com/raysh454/regress/internal/baseline"
	"github.com/raysh454/regress/internal/model"
)

func metricsAt(hash string, minute int) model.Metrics {
	return model.Metrics{
		ContentHash: hash,
		Timestamp:   time.Date(2026, 1, 1, 0, minute, 0, 0, time.UTC),
	}
}

func TestSelect_EmptyHistoryHasNoBaseline(t *testing.T) {
	t.Parallel()
	if got := baseline.Select(nil, metricsAt("now", 9)); got != nil {
		t.Errorf("expected nil baseline, got %+v", got)
	}
}

func TestSelect_OldestRetained(t *testing.T) {
	t.Parallel()
	history := []model.Metrics{metricsAt("a", 1), metricsAt("b", 2), metricsAt("c", 3)}

	got := baseline.Select(history, metricsAt("now", 9))
	if got == nil {
		t.Fatal("expected a baseline")
	}
	if got.ContentHash != "a" {
		t.Errorf("expected oldest snapshot a, got %s", got.ContentHash)
	}
}

func TestSelect_ExcludesCurrentContent(t *testing.T) {
	t.Parallel()

	// Only entry is the current content itself: nothing to compare with.
	if got := baseline.Select([]model.Metrics{metricsAt("now", 1)}, metricsAt("now", 9)); got != nil {
		t.Errorf("expected nil baseline, got %+v", got)
	}

	history := []model.Metrics{metricsAt("a", 1), metricsAt("now", 2)}
	got := baseline.Select(history, metricsAt("now", 9))
	if got == nil || got.ContentHash != "a" {
		t.Errorf("expected baseline a, got %+v", got)
	}
}

func TestSelectWithPolicy_Previous(t *testing.T) {
	t.Parallel()
	history := []model.Metrics{metricsAt("a", 1), metricsAt("b", 2), metricsAt("c", 3)}

	got := baseline.SelectWithPolicy(baseline.PolicyPrevious, history, metricsAt("now", 9))
	if got == nil || got.ContentHash != "c" {
		t.Errorf("expected previous snapshot c, got %+v", got)
	}
}

func TestSelect_ReturnsCopy(t *testing.T) {
	t.Parallel()
	history := []model.Metrics{{ContentHash: "a", HeadingOutline: []int{1, 2}}}

	got := baseline.Select(history, metricsAt("now", 9))
	got.HeadingOutline[0] = 6
	if history[0].HeadingOutline[0] != 1 {
		t.Error("baseline must not alias history")
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    baseline.Policy
		wantErr bool
	}{
		{"", baseline.PolicyOldest, false},
		{"oldest", baseline.PolicyOldest, false},
		{" Previous ", baseline.PolicyPrevious, false},
		{"median", "", true},
	}
	for _, tt := range tests {
		got, err := baseline.ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
