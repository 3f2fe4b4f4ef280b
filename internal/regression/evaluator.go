// Package regression ties analysis, snapshot history, baseline selection and
// detection together. It is the only place that mutates snapshot history.
package regression

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/regress/internal/analyzer"
	"github.com/raysh454/regress/internal/baseline"
	"github.com/raysh454/regress/internal/detector"
	"github.com/raysh454/regress/internal/lockmap"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/settings"
	"github.com/raysh454/regress/internal/snapshot"
)

// cacheEntry is the last evaluation of a document. raw keeps the warnings
// before suppression so acknowledgements can be recomputed; baseline and
// window are what the detectors compared against.
type cacheEntry struct {
	status   model.RegressionStatus
	raw      []model.Warning
	baseline *model.Metrics
	window   []model.Metrics
}

// Evaluator runs the save-time evaluation flow.
type Evaluator struct {
	store    snapshot.Store
	acks     settings.Repository
	pipeline *detector.Pipeline
	metrics  *Metrics
	logger   logging.Logger
	now      func() time.Time

	docLocks lockmap.Map

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithPipeline replaces the default detector set.
func WithPipeline(p *detector.Pipeline) Option {
	return func(e *Evaluator) { e.pipeline = p }
}

// WithMetrics records evaluations on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator wires an evaluator over store. acks may be nil, in which case
// mark-intentional is unavailable and nothing is ever suppressed.
func NewEvaluator(store snapshot.Store, acks settings.Repository, logger logging.Logger, opts ...Option) (*Evaluator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if logger == nil {
		return nil, errors.New("regression: nil logger provided")
	}
	logger = logger.With(logging.Field{Key: "component", Value: "evaluator"})

	e := &Evaluator{
		store:  store,
		acks:   acks,
		logger: logger,
		now:    time.Now,
		cache:  make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pipeline == nil {
		e.pipeline = detector.NewPipeline(logger)
	}
	return e, nil
}

// Evaluate analyzes doc, compares it against its own history, records the
// new snapshot and returns the resulting status. The status is never nil.
//
// Storage failures do not hide the content checks: the returned status
// carries a storage_unavailable notice, has no baseline, and the error
// wraps ErrStorageUnavailable.
func (e *Evaluator) Evaluate(ctx context.Context, doc model.Document, cfg Config, docSettings model.DocumentSettings) (*model.RegressionStatus, error) {
	return e.run(ctx, doc, cfg, docSettings, true)
}

// Peek evaluates doc against its history without recording a snapshot.
func (e *Evaluator) Peek(ctx context.Context, doc model.Document, cfg Config, docSettings model.DocumentSettings) (*model.RegressionStatus, error) {
	return e.run(ctx, doc, cfg, docSettings, false)
}

func (e *Evaluator) run(ctx context.Context, doc model.Document, cfg Config, docSettings model.DocumentSettings, commit bool) (*model.RegressionStatus, error) {
	start := e.now()
	status := &model.RegressionStatus{
		DocumentID:  doc.ID,
		Warnings:    []model.Warning{},
		EvaluatedAt: start,
	}
	if doc.ID == "" {
		return status, ErrEmptyDocumentID
	}

	cfg, adjusted := cfg.Normalize()
	for _, a := range adjusted {
		e.logger.Warn("config value clamped", logging.Field{Key: "adjustment", Value: a})
	}

	if docSettings.DetectionDisabled {
		e.forget(doc.ID)
		e.metrics.observeEvaluation(outcomeDisabled, status, e.now().Sub(start))
		return status, nil
	}

	logger := e.logger.With(logging.Field{Key: "document_id", Value: doc.ID})

	if commit {
		unlock, err := e.docLocks.Lock(ctx, doc.ID)
		if err != nil {
			return status, err
		}
		defer unlock()
	}

	storageCtx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout)
	defer cancel()

	history, storageErr := e.store.History(storageCtx, doc.ID)
	if storageErr != nil {
		history = nil
	}

	current := analyzer.AnalyzeDocument(doc, cfg.Analyzer, timestampAfter(history, start))
	status.Current = current

	var (
		latest    = lastOf(history)
		unchanged = latest != nil && latest.ContentHash == current.ContentHash
		base      *model.Metrics
		window    []model.Metrics
		reused    bool
	)

	if unchanged {
		// Re-saving identical content keeps the stored snapshot.
		status.Current = latest.Clone()
		status.Unchanged = true
		// Older snapshots may have been evicted since the last evaluation of
		// this content; compare against what that evaluation compared with.
		if prev, ok := e.cachedEntry(doc.ID); ok && prev.status.Current.ContentHash == current.ContentHash {
			base, window, reused = prev.baseline, prev.window, true
		}
	}
	if !reused && storageErr == nil {
		base = baseline.SelectWithPolicy(cfg.BaselinePolicy, history, current)
		window = baseline.Window(history, current)
	}

	appended := false
	if storageErr == nil && commit && !unchanged {
		current.SnapshotID = uuid.NewString()
		if err := e.store.Append(storageCtx, doc.ID, current); err != nil {
			storageErr = err
		} else {
			status.Current = current.Clone()
			appended = true
		}
	}
	if storageErr != nil {
		// Without working history there is no baseline to compare with.
		base, window = nil, nil
	}

	status.Baseline = base
	status.HasBaseline = base != nil
	raw := e.pipeline.Run(detector.Input{
		Current:     status.Current,
		Baseline:    base,
		Window:      window,
		Config:      cfg.Detector,
		Settings:    docSettings,
		PublishedAt: doc.PublishedAt,
		Now:         start,
	})

	if appended {
		e.clearStaleAcknowledgement(ctx, doc.ID, current.ContentHash)
	}

	if current.AnalysisFailed {
		logger.Warn("analysis degraded")
		raw = append(raw, model.Warning{
			Type:     model.WarningAnalysisDegraded,
			Severity: model.SeverityNotice,
			Message:  "Markup could not be analyzed; metrics are zeroed",
		})
	}

	if storageErr != nil {
		logger.Error("snapshot storage failed", logging.Err(storageErr))
		raw = append(raw, model.Warning{
			Type:     model.WarningStorageUnavailable,
			Severity: model.SeverityNotice,
			Message:  "Snapshot history is unavailable; no baseline comparison was made",
		})
		e.applySuppression(ctx, status, raw)
		e.metrics.observeEvaluation(outcomeStorageFail, status, e.now().Sub(start))
		return status, fmt.Errorf("%w: %w", ErrStorageUnavailable, storageErr)
	}

	e.applySuppression(ctx, status, raw)
	e.remember(status, raw, base, window)

	outcome := outcomeEvaluated
	switch {
	case !commit:
		outcome = outcomePeek
	case unchanged:
		outcome = outcomeUnchanged
	}
	e.metrics.observeEvaluation(outcome, status, e.now().Sub(start))

	logger.Debug("document evaluated",
		logging.Field{Key: "outcome", Value: outcome},
		logging.Field{Key: "has_baseline", Value: status.HasBaseline},
		logging.Field{Key: "warnings", Value: len(status.Warnings)},
		logging.Field{Key: "suppressed", Value: status.Suppressed})

	return status, nil
}

// applySuppression fills status.Warnings from raw, hiding detector warnings
// acknowledged for the current content.
func (e *Evaluator) applySuppression(ctx context.Context, status *model.RegressionStatus, raw []model.Warning) {
	var ack *model.Acknowledgement
	if e.acks != nil {
		var err error
		ack, err = e.acks.GetAcknowledgement(ctx, status.DocumentID)
		if err != nil {
			e.logger.Warn("loading acknowledgement",
				logging.Field{Key: "document_id", Value: status.DocumentID},
				logging.Err(err))
			ack = nil
		}
	}
	status.Warnings, status.Suppressed = suppress(raw, ack, status.Current.ContentHash)
}

func suppress(raw []model.Warning, ack *model.Acknowledgement, contentHash string) ([]model.Warning, int) {
	visible := make([]model.Warning, 0, len(raw))
	suppressed := 0
	for _, w := range raw {
		if !w.Type.Internal() && ack.Covers(contentHash, w) {
			suppressed++
			continue
		}
		visible = append(visible, w)
	}
	return visible, suppressed
}

// clearStaleAcknowledgement drops an acknowledgement recorded for other
// content once a new version of the document has been stored.
func (e *Evaluator) clearStaleAcknowledgement(ctx context.Context, id, contentHash string) {
	if e.acks == nil {
		return
	}
	ack, err := e.acks.GetAcknowledgement(ctx, id)
	if err == nil && (ack == nil || ack.ContentHash == contentHash) {
		return
	}
	if err == nil {
		err = e.acks.ClearAcknowledgement(ctx, id)
	}
	if err != nil {
		e.logger.Warn("clearing acknowledgement",
			logging.Field{Key: "document_id", Value: id},
			logging.Err(err))
	}
}

// Cached returns the most recent status computed for id.
func (e *Evaluator) Cached(id string) (*model.RegressionStatus, bool) {
	entry, ok := e.cachedEntry(id)
	if !ok {
		return nil, false
	}
	return &entry.status, true
}

// MarkIntentional acknowledges every detector warning of the last
// evaluation of id. The warnings stay hidden until the content changes.
// It returns how many warnings were acknowledged.
func (e *Evaluator) MarkIntentional(ctx context.Context, id string) (int, error) {
	if e.acks == nil {
		return 0, errors.New("regression: no acknowledgement repository configured")
	}
	entry, ok := e.cachedEntry(id)
	if !ok {
		return 0, ErrNoEvaluation
	}

	ack := model.Acknowledgement{
		DocumentID:     id,
		ContentHash:    entry.status.Current.ContentHash,
		Fingerprints:   []string{},
		AcknowledgedAt: e.now(),
	}
	for _, w := range entry.raw {
		if !w.Type.Internal() {
			ack.Fingerprints = append(ack.Fingerprints, w.Fingerprint())
		}
	}
	if err := e.acks.SaveAcknowledgement(ctx, ack); err != nil {
		return 0, fmt.Errorf("save acknowledgement: %w", err)
	}

	status := entry.status
	status.Warnings, status.Suppressed = suppress(entry.raw, &ack, ack.ContentHash)
	e.remember(&status, entry.raw, entry.baseline, entry.window)

	e.logger.Info("warnings marked intentional",
		logging.Field{Key: "document_id", Value: id},
		logging.Field{Key: "count", Value: len(ack.Fingerprints)})
	return len(ack.Fingerprints), nil
}

// ResetBaseline clears the document's snapshot history. The next
// evaluation starts over without a baseline.
func (e *Evaluator) ResetBaseline(ctx context.Context, id string, cfg Config) error {
	if id == "" {
		return ErrEmptyDocumentID
	}
	cfg, _ = cfg.Normalize()

	unlock, err := e.docLocks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	storageCtx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout)
	defer cancel()
	if err := e.store.Reset(storageCtx, id); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	e.forget(id)
	if e.acks != nil {
		if err := e.acks.ClearAcknowledgement(ctx, id); err != nil {
			return fmt.Errorf("clear acknowledgement: %w", err)
		}
	}

	e.logger.Info("baseline reset", logging.Field{Key: "document_id", Value: id})
	return nil
}

// History returns the retained snapshots of id, oldest first.
func (e *Evaluator) History(ctx context.Context, id string) ([]model.Metrics, error) {
	return e.store.History(ctx, id)
}

func (e *Evaluator) cachedEntry(id string) (cacheEntry, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	entry, ok := e.cache[id]
	if !ok {
		return cacheEntry{}, false
	}
	entry.status = cloneStatus(entry.status)
	entry.raw = cloneWarnings(entry.raw)
	entry.baseline = cloneMetricsPtr(entry.baseline)
	entry.window = model.CloneHistory(entry.window)
	return entry, true
}

func (e *Evaluator) remember(status *model.RegressionStatus, raw []model.Warning, base *model.Metrics, window []model.Metrics) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache[status.DocumentID] = cacheEntry{
		status:   cloneStatus(*status),
		raw:      cloneWarnings(raw),
		baseline: cloneMetricsPtr(base),
		window:   model.CloneHistory(window),
	}
}

// Forget drops the cached status of id, so the next query re-evaluates it
// with current settings.
func (e *Evaluator) Forget(id string) {
	e.forget(id)
}

func (e *Evaluator) forget(id string) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	delete(e.cache, id)
}

// timestampAfter returns now, or one nanosecond past the newest stored
// snapshot when the clock has not moved beyond it.
func timestampAfter(history []model.Metrics, now time.Time) time.Time {
	if latest := lastOf(history); latest != nil && !now.After(latest.Timestamp) {
		return latest.Timestamp.Add(time.Nanosecond)
	}
	return now
}

func lastOf(history []model.Metrics) *model.Metrics {
	if len(history) == 0 {
		return nil
	}
	return &history[len(history)-1]
}

func cloneWarnings(ws []model.Warning) []model.Warning {
	if ws == nil {
		return nil
	}
	out := make([]model.Warning, len(ws))
	copy(out, ws)
	return out
}

func cloneMetricsPtr(m *model.Metrics) *model.Metrics {
	if m == nil {
		return nil
	}
	c := m.Clone()
	return &c
}

func cloneStatus(s model.RegressionStatus) model.RegressionStatus {
	s.Warnings = cloneWarnings(s.Warnings)
	if s.Warnings == nil {
		s.Warnings = []model.Warning{}
	}
	s.Current = s.Current.Clone()
	s.Baseline = cloneMetricsPtr(s.Baseline)
	return s
}
