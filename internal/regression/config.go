package regression

import (
	"fmt"
	"slices"
	"time"

	"github.com/raysh454/regress/internal/analyzer"
	"github.com/raysh454/regress/internal/baseline"
	"github.com/raysh454/regress/internal/detector"
)

const (
	DefaultStorageTimeout  = 5 * time.Second
	DefaultBatchWorkers    = 4
	DefaultDocumentTimeout = 30 * time.Second
)

// Config is the global engine configuration injected into every call.
type Config struct {
	// Enabled switches the whole module. Batch runs skip every document
	// while it is off; the save hook checks it before calling Evaluate.
	Enabled bool `json:"enabled"`

	// DocumentTypes limits batch runs to these types. Empty means all.
	DocumentTypes []string `json:"document_types,omitempty"`

	BaselinePolicy baseline.Policy `json:"baseline_policy"`

	// StorageTimeout bounds every snapshot store call made while evaluating.
	StorageTimeout time.Duration `json:"storage_timeout"`

	// BatchWorkers bounds how many documents a batch run evaluates at once.
	BatchWorkers int `json:"batch_workers"`
	// DocumentTimeout bounds a single document inside a batch run.
	DocumentTimeout time.Duration `json:"document_timeout"`

	Analyzer analyzer.Config `json:"analyzer"`
	Detector detector.Config `json:"detector"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		BaselinePolicy:  baseline.PolicyOldest,
		StorageTimeout:  DefaultStorageTimeout,
		BatchWorkers:    DefaultBatchWorkers,
		DocumentTimeout: DefaultDocumentTimeout,
		Analyzer: analyzer.Config{
			ExcludeShortcodes:    true,
			ExcludeNofollowLinks: false,
		},
		Detector: detector.DefaultConfig(),
	}
}

// Normalize clamps every out-of-range value so detectors never see one.
// The returned strings describe each adjustment for logging.
func (c Config) Normalize() (Config, []string) {
	var adjusted []string

	policy, err := baseline.ParsePolicy(string(c.BaselinePolicy))
	if err != nil {
		adjusted = append(adjusted, fmt.Sprintf("baseline_policy %q replaced with %q", c.BaselinePolicy, baseline.PolicyOldest))
		policy = baseline.PolicyOldest
	}
	c.BaselinePolicy = policy

	if c.StorageTimeout <= 0 {
		if c.StorageTimeout < 0 {
			adjusted = append(adjusted, fmt.Sprintf("storage_timeout %s replaced with %s", c.StorageTimeout, DefaultStorageTimeout))
		}
		c.StorageTimeout = DefaultStorageTimeout
	}
	if c.BatchWorkers <= 0 {
		if c.BatchWorkers < 0 {
			adjusted = append(adjusted, fmt.Sprintf("batch_workers %d replaced with %d", c.BatchWorkers, DefaultBatchWorkers))
		}
		c.BatchWorkers = DefaultBatchWorkers
	}
	if c.DocumentTimeout <= 0 {
		if c.DocumentTimeout < 0 {
			adjusted = append(adjusted, fmt.Sprintf("document_timeout %s replaced with %s", c.DocumentTimeout, DefaultDocumentTimeout))
		}
		c.DocumentTimeout = DefaultDocumentTimeout
	}

	var detectorAdjusted []string
	c.Detector, detectorAdjusted = c.Detector.Normalize()
	adjusted = append(adjusted, detectorAdjusted...)

	return c, adjusted
}

// TypeEnabled reports whether documents of type t take part in batch runs.
func (c Config) TypeEnabled(t string) bool {
	return len(c.DocumentTypes) == 0 || slices.Contains(c.DocumentTypes, t)
}
