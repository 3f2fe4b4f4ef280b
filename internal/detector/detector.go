// Package detector holds the structural regression checks. Each detector is
// a pure function of (current, baseline, settings); the Pipeline runs them
// independently and concatenates their warnings.
package detector

import (
	"fmt"
	"time"

	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
)

// Input is everything a detector may look at.
type Input struct {
	Current model.Metrics
	// Baseline is nil when the document has no usable history.
	Baseline *model.Metrics
	// Window is the retained history before Current, oldest first.
	Window []model.Metrics

	Config   Config
	Settings model.DocumentSettings

	// PublishedAt is the document's original publish time; zero if unknown.
	PublishedAt time.Time
	Now         time.Time
}

// Detector inspects one Input and reports zero or more warnings.
type Detector interface {
	Name() string
	Detect(in Input) []model.Warning
}

// Pipeline runs detectors in registration order. A panicking detector is
// logged and contributes no warnings; the others still run.
type Pipeline struct {
	detectors []Detector
	logger    logging.Logger
}

// NewPipeline builds a pipeline over detectors. With none given it uses
// Defaults().
func NewPipeline(logger logging.Logger, detectors ...Detector) *Pipeline {
	if len(detectors) == 0 {
		detectors = Defaults()
	}
	return &Pipeline{detectors: detectors, logger: logger}
}

// Defaults returns the standard detector set.
func Defaults() []Detector {
	return []Detector{LinkDrop{}, WordCountDrop{}, HeadingStructure{}}
}

// Run executes every detector and concatenates their output.
func (p *Pipeline) Run(in Input) []model.Warning {
	warnings := []model.Warning{}
	for _, d := range p.detectors {
		warnings = append(warnings, p.runOne(d, in)...)
	}
	return warnings
}

func (p *Pipeline) runOne(d Detector, in Input) (out []model.Warning) {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Error("detector panicked",
					logging.Field{Key: "detector", Value: d.Name()},
					logging.Field{Key: "document_id", Value: in.Current.DocumentID},
					logging.Field{Key: "panic", Value: fmt.Sprint(r)})
			}
			out = nil
		}
	}()
	return d.Detect(in)
}

// baselineTime returns a pointer to the baseline timestamp for warnings.
func baselineTime(b *model.Metrics) *time.Time {
	if b == nil {
		return nil
	}
	ts := b.Timestamp
	return &ts
}

// reachesPercent reports drop/base*100 >= percent without float rounding at
// the boundary (a 3-of-10 drop is exactly 30%).
func reachesPercent(drop, base, percent float64) bool {
	return drop*100 >= percent*base
}
