package model

import (
	"slices"
	"time"
)

// Metrics is one structural snapshot of a document, taken when it is saved.
// Metrics are immutable once stored; stores hand out copies.
type Metrics struct {
	// DocumentID is stable across edits of the same logical document.
	DocumentID string `json:"document_id"`

	// SnapshotID is assigned by the snapshot store on append.
	SnapshotID string `json:"snapshot_id,omitempty"`

	// Timestamp is supplied by the caller and strictly increases per document.
	Timestamp time.Time `json:"timestamp"`

	WordCount         int   `json:"word_count"`
	InternalLinkCount int   `json:"internal_link_count"`
	HeadingOutline    []int `json:"heading_outline"`

	// ContentHash is the hex sha256 of the whitespace-normalized markup.
	ContentHash string `json:"content_hash"`

	// AnalysisFailed is set when the markup could not be analyzed at all;
	// counts are zero in that case.
	AnalysisFailed bool `json:"analysis_failed,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate stored history.
func (m Metrics) Clone() Metrics {
	m.HeadingOutline = slices.Clone(m.HeadingOutline)
	return m
}

// CloneHistory deep-copies a slice of Metrics.
func CloneHistory(history []Metrics) []Metrics {
	if history == nil {
		return nil
	}
	out := make([]Metrics, len(history))
	for i, m := range history {
		out[i] = m.Clone()
	}
	return out
}

// Document is what the host system hands the engine on save or batch runs.
type Document struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`

	// Markup is the raw document content.
	Markup string `json:"content"`

	// PublishedAt is the original publish/creation time. Zero means unknown.
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// DocumentSettings are per-document overrides of the global config.
type DocumentSettings struct {
	DocumentID string `json:"document_id"`

	// DetectionDisabled opts the document out entirely.
	DetectionDisabled bool `json:"detection_disabled"`

	// IsShortForm exempts the document from word-count detection.
	IsShortForm bool `json:"is_short_form"`
}

// Acknowledgement records that warnings for one content version were
// reviewed and accepted. It only applies while the content hash matches.
type Acknowledgement struct {
	DocumentID     string    `json:"document_id"`
	ContentHash    string    `json:"content_hash"`
	Fingerprints   []string  `json:"fingerprints"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// Covers reports whether w was acknowledged for the given content hash.
func (a *Acknowledgement) Covers(contentHash string, w Warning) bool {
	if a == nil || a.ContentHash != contentHash {
		return false
	}
	return slices.Contains(a.Fingerprints, w.Fingerprint())
}
