package model

import (
	"fmt"
	"time"
)

// WarningType identifies which check produced a Warning.
type WarningType string

const (
	WarningLinkDrop            WarningType = "link_drop"
	WarningWordCountDrop       WarningType = "word_count_drop"
	WarningHeadingMissingH1    WarningType = "heading_missing_h1"
	WarningHeadingMultipleH1   WarningType = "heading_multiple_h1"
	WarningHeadingSkippedLevel WarningType = "heading_skipped_level"

	// Engine notices. They describe the evaluation itself, not the content.
	WarningAnalysisDegraded   WarningType = "analysis_degraded"
	WarningStorageUnavailable WarningType = "storage_unavailable"
)

// Internal reports whether t is an engine notice rather than a detector result.
func (t WarningType) Internal() bool {
	return t == WarningAnalysisDegraded || t == WarningStorageUnavailable
}

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityNotice  Severity = "notice"
)

// Warning is a single finding produced by a detector.
type Warning struct {
	Type     WarningType `json:"type"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`

	// Before and After are set for drop-style warnings.
	Before *float64 `json:"before,omitempty"`
	After  *float64 `json:"after,omitempty"`

	// BaselineTimestamp is the timestamp of the snapshot compared against.
	BaselineTimestamp *time.Time `json:"baseline_timestamp,omitempty"`
}

// Fingerprint identifies a warning across re-evaluations of the same content.
func (w Warning) Fingerprint() string {
	fp := string(w.Type)
	if w.Before != nil {
		fp += fmt.Sprintf(":%g", *w.Before)
	}
	if w.After != nil {
		fp += fmt.Sprintf(":%g", *w.After)
	}
	return fp
}

// Float returns a pointer to v, for Warning.Before/After.
func Float(v float64) *float64 {
	return &v
}

// RegressionStatus is the evaluator's view of one document. It is computed
// on demand and never persisted.
type RegressionStatus struct {
	DocumentID  string    `json:"document_id"`
	HasBaseline bool      `json:"has_baseline"`
	Warnings    []Warning `json:"warnings"`
	Current     Metrics   `json:"current"`
	Baseline    *Metrics  `json:"baseline"`

	// Unchanged is set when the content hash matched the latest snapshot
	// and history was left untouched.
	Unchanged bool `json:"unchanged,omitempty"`

	// Suppressed counts warnings hidden by a mark-intentional record.
	Suppressed int `json:"suppressed,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// HasRegressions reports whether any detector produced a finding.
// Engine notices do not count.
func (s *RegressionStatus) HasRegressions() bool {
	if s == nil {
		return false
	}
	for _, w := range s.Warnings {
		if !w.Type.Internal() {
			return true
		}
	}
	return false
}
