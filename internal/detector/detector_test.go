package detector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/regress/internal/detector"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/testutil"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func linkInput(before, after int) detector.Input {
	cfg := detector.DefaultConfig()
	cfg.LinkDropPercent = 30
	cfg.LinkDropAbsolute = 3
	return detector.Input{
		Current:  model.Metrics{InternalLinkCount: after, Timestamp: now},
		Baseline: &model.Metrics{InternalLinkCount: before, Timestamp: now.Add(-48 * time.Hour)},
		Config:   cfg,
		Now:      now,
	}
}

func TestLinkDrop_ORLogic(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		after     int
		wantFires bool
	}{
		{"20% and 2 links: below both thresholds", 8, false},
		{"30% and 3 links: at both thresholds", 7, true},
		{"40% and 4 links: above both thresholds", 6, true},
		{"no change", 10, false},
		{"increase", 14, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := detector.LinkDrop{}.Detect(linkInput(10, tt.after))
			if !tt.wantFires {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			w := got[0]
			assert.Equal(t, model.WarningLinkDrop, w.Type)
			assert.Equal(t, model.SeverityWarning, w.Severity)
			require.NotNil(t, w.Before)
			require.NotNil(t, w.After)
			assert.Equal(t, 10.0, *w.Before)
			assert.Equal(t, float64(tt.after), *w.After)
			require.NotNil(t, w.BaselineTimestamp)
			assert.True(t, w.BaselineTimestamp.Equal(now.Add(-48*time.Hour)))
		})
	}
}

func TestLinkDrop_EitherThresholdAloneFires(t *testing.T) {
	t.Parallel()

	// Large site: 5 of 100 links is only 5% but meets the absolute threshold.
	in := linkInput(100, 95)
	in.Config.LinkDropAbsolute = 5
	assert.Len(t, detector.LinkDrop{}.Detect(in), 1)

	// Small page: 2 of 4 links is 50% even though it is below 3 absolute.
	in = linkInput(4, 2)
	assert.Len(t, detector.LinkDrop{}.Detect(in), 1)
}

func TestLinkDrop_ZeroBaselineGuard(t *testing.T) {
	t.Parallel()
	assert.Empty(t, detector.LinkDrop{}.Detect(linkInput(0, 5)))
	assert.Empty(t, detector.LinkDrop{}.Detect(linkInput(0, 0)))
}

func TestLinkDrop_NeedsBaselineAndEnabled(t *testing.T) {
	t.Parallel()
	in := linkInput(10, 0)
	in.Baseline = nil
	assert.Empty(t, detector.LinkDrop{}.Detect(in))

	in = linkInput(10, 0)
	in.Config.LinkDropEnabled = false
	assert.Empty(t, detector.LinkDrop{}.Detect(in))
}

func TestLinkDrop_ZeroAbsoluteDisablesAbsoluteLeg(t *testing.T) {
	t.Parallel()
	in := linkInput(100, 99)
	in.Config.LinkDropAbsolute = 0
	assert.Empty(t, detector.LinkDrop{}.Detect(in))
}

func wordInput(before, after int, age time.Duration) detector.Input {
	cfg := detector.DefaultConfig()
	cfg.WordCountDropPercent = 30
	cfg.WordCountMinAgeDays = 30
	return detector.Input{
		Current:     model.Metrics{WordCount: after, Timestamp: now},
		Baseline:    &model.Metrics{WordCount: before, Timestamp: now.Add(-time.Hour)},
		Window:      []model.Metrics{{WordCount: before}},
		Config:      cfg,
		PublishedAt: now.Add(-age),
		Now:         now,
	}
}

func TestWordCountDrop_AgeGate(t *testing.T) {
	t.Parallel()
	day := 24 * time.Hour

	young := wordInput(1000, 500, 10*day)
	assert.Empty(t, detector.WordCountDrop{}.Detect(young), "10-day-old document is exempt")

	young.Config.WordCountDropPercent = 1
	assert.Empty(t, detector.WordCountDrop{}.Detect(young), "exempt regardless of threshold")

	old := wordInput(1000, 500, 31*day)
	got := detector.WordCountDrop{}.Detect(old)
	require.Len(t, got, 1)
	assert.Equal(t, model.WarningWordCountDrop, got[0].Type)
	assert.Equal(t, 1000.0, *got[0].Before)
	assert.Equal(t, 500.0, *got[0].After)
}

func TestWordCountDrop_UnknownPublishTime(t *testing.T) {
	t.Parallel()
	in := wordInput(1000, 100, 0)
	in.PublishedAt = time.Time{}
	assert.Empty(t, detector.WordCountDrop{}.Detect(in))

	in.Config.WordCountMinAgeDays = 0
	assert.Len(t, detector.WordCountDrop{}.Detect(in), 1)
}

func TestWordCountDrop_Threshold(t *testing.T) {
	t.Parallel()
	day := 24 * time.Hour
	assert.Empty(t, detector.WordCountDrop{}.Detect(wordInput(1000, 701, 60*day)))
	assert.Len(t, detector.WordCountDrop{}.Detect(wordInput(1000, 700, 60*day)), 1)
	assert.Empty(t, detector.WordCountDrop{}.Detect(wordInput(0, 0, 60*day)), "zero baseline never fires")
	assert.Empty(t, detector.WordCountDrop{}.Detect(wordInput(500, 900, 60*day)), "growth never fires")
}

func TestWordCountDrop_ShortFormAndDisabled(t *testing.T) {
	t.Parallel()
	in := wordInput(1000, 100, 60*24*time.Hour)
	in.Settings.IsShortForm = true
	assert.Empty(t, detector.WordCountDrop{}.Detect(in))

	in = wordInput(1000, 100, 60*24*time.Hour)
	in.Config.WordCountEnabled = false
	assert.Empty(t, detector.WordCountDrop{}.Detect(in))

	in = wordInput(1000, 100, 60*24*time.Hour)
	in.Baseline = nil
	assert.Empty(t, detector.WordCountDrop{}.Detect(in))
}

func TestWordCountDrop_CompareAverage(t *testing.T) {
	t.Parallel()
	in := wordInput(2000, 900, 60*24*time.Hour)
	// One anomalously long oldest snapshot; the rest hover around 1000.
	in.Window = []model.Metrics{{WordCount: 2000}, {WordCount: 1000}, {WordCount: 1000}, {WordCount: 1000}}

	assert.Len(t, detector.WordCountDrop{}.Detect(in), 1, "55% below the oldest snapshot")

	in.Config.CompareAverage = true
	assert.Empty(t, detector.WordCountDrop{}.Detect(in), "average is 1250, a 28% drop")

	in.Current.WordCount = 800
	got := detector.WordCountDrop{}.Detect(in)
	require.Len(t, got, 1)
	assert.Equal(t, 1250.0, *got[0].Before)
}

func headingInput(outline ...int) detector.Input {
	return detector.Input{
		Current: model.Metrics{HeadingOutline: outline},
		Config:  detector.DefaultConfig(),
		Now:     now,
	}
}

func warningTypes(ws []model.Warning) []model.WarningType {
	out := []model.WarningType{}
	for _, w := range ws {
		out = append(out, w.Type)
	}
	return out
}

func TestHeadingStructure(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		outline []int
		want    []model.WarningType
	}{
		{"clean outline", []int{1, 2, 3}, []model.WarningType{}},
		{"multiple h1", []int{1, 2, 1, 3}, []model.WarningType{model.WarningHeadingMultipleH1}},
		{"skipped level", []int{1, 2, 4}, []model.WarningType{model.WarningHeadingSkippedLevel}},
		{"consecutive descent", []int{1, 2, 3, 4}, []model.WarningType{}},
		{"moving back up is fine", []int{1, 2, 3, 4, 2, 3}, []model.WarningType{}},
		{"skip measured from the previous heading", []int{1, 2, 3, 2, 4}, []model.WarningType{model.WarningHeadingSkippedLevel}},
		{"missing h1", []int{2, 3}, []model.WarningType{model.WarningHeadingMissingH1}},
		{"empty outline is not evaluated", []int{}, []model.WarningType{}},
		{"everything at once", []int{2, 1, 1, 3}, []model.WarningType{
			model.WarningHeadingMultipleH1,
			model.WarningHeadingSkippedLevel,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := detector.HeadingStructure{}.Detect(headingInput(tt.outline...))
			assert.Equal(t, tt.want, warningTypes(got))
		})
	}
}

func TestHeadingStructure_SkipMessageNamesFirstPair(t *testing.T) {
	t.Parallel()
	got := detector.HeadingStructure{}.Detect(headingInput(1, 2, 4, 2, 5))
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "H2 followed by H4")
	assert.Equal(t, 2.0, *got[0].After)
	assert.Equal(t, model.SeverityNotice, got[0].Severity)
}

func TestHeadingStructure_ChecksToggleIndependently(t *testing.T) {
	t.Parallel()
	in := headingInput(2, 2, 4)
	in.Config.HeadingMissingH1 = false
	assert.Equal(t, []model.WarningType{model.WarningHeadingSkippedLevel}, warningTypes(detector.HeadingStructure{}.Detect(in)))

	in.Config.HeadingSkippedLevel = false
	assert.Empty(t, detector.HeadingStructure{}.Detect(in))
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) Detect(detector.Input) []model.Warning {
	panic("bug in check")
}

func TestPipeline_IsolatesPanickingDetector(t *testing.T) {
	t.Parallel()
	logger := &testutil.DummyLogger{}
	p := detector.NewPipeline(logger, panicky{}, detector.HeadingStructure{}, detector.LinkDrop{})

	in := linkInput(10, 6)
	in.Current.HeadingOutline = []int{1, 1}
	got := p.Run(in)

	assert.Equal(t, []model.WarningType{model.WarningHeadingMultipleH1, model.WarningLinkDrop}, warningTypes(got))
	assert.Len(t, logger.Errors, 1)
}

func TestPipeline_DefaultsAndEmptyResult(t *testing.T) {
	t.Parallel()
	p := detector.NewPipeline(nil)
	got := p.Run(headingInput(1, 2))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestConfig_Normalize(t *testing.T) {
	t.Parallel()
	cfg := detector.DefaultConfig()
	cfg.LinkDropPercent = -5
	cfg.WordCountDropPercent = 250
	cfg.LinkDropAbsolute = -1
	cfg.WordCountMinAgeDays = -30

	got, adjusted := cfg.Normalize()
	assert.Equal(t, 0.0, got.LinkDropPercent)
	assert.Equal(t, 100.0, got.WordCountDropPercent)
	assert.Equal(t, 0, got.LinkDropAbsolute)
	assert.Equal(t, 0, got.WordCountMinAgeDays)
	assert.Len(t, adjusted, 4)

	_, adjusted = detector.DefaultConfig().Normalize()
	assert.Empty(t, adjusted)
}

func TestConfig_NormalizeCapsMinAge(t *testing.T) {
	t.Parallel()
	cfg := detector.DefaultConfig()
	cfg.WordCountMinAgeDays = 200000

	got, adjusted := cfg.Normalize()
	assert.Equal(t, detector.MaxWordCountMinAgeDays, got.WordCountMinAgeDays)
	assert.Len(t, adjusted, 1)
}
