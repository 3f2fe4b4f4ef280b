package regression

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/raysh454/regress/internal/documents"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/settings"
)

type BatchEventType string

const (
	BatchEventStarted  BatchEventType = "started"
	BatchEventDocument BatchEventType = "document"
	BatchEventFinished BatchEventType = "finished"
)

// DocumentOutcome is the per-document result reported in batch events.
type DocumentOutcome string

const (
	OutcomeClean    DocumentOutcome = "clean"
	OutcomeWarnings DocumentOutcome = "warnings"
	OutcomeSkipped  DocumentOutcome = "skipped"
	OutcomeFailed   DocumentOutcome = "failed"
)

// BatchEvent reports batch progress. Events for one run are delivered one
// at a time, never concurrently.
type BatchEvent struct {
	RunID string         `json:"run_id"`
	Type  BatchEventType `json:"type"`

	DocumentID string          `json:"document_id,omitempty"`
	Outcome    DocumentOutcome `json:"outcome,omitempty"`
	Error      string          `json:"error,omitempty"`

	Done  int `json:"done"`
	Total int `json:"total"`

	// Result is set on the finished event.
	Result *BatchResult `json:"result,omitempty"`
}

// ProgressFunc receives batch events. It must not block for long: workers
// wait while it runs.
type ProgressFunc func(BatchEvent)

// DocumentFailure names a document the batch could not evaluate.
type DocumentFailure struct {
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}

// BatchResult tallies a batch run. Every requested id is counted exactly
// once in Processed, Failed or Skipped, unless the run was canceled first.
type BatchResult struct {
	RunID string `json:"run_id"`

	Requested int `json:"requested"`
	// Eligible is Processed plus Failed.
	Eligible  int `json:"eligible"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// WithWarnings counts processed documents with at least one detector
	// warning. Engine notices do not count.
	WithWarnings int `json:"with_warnings"`

	Failures []DocumentFailure `json:"failures,omitempty"`
	Canceled bool              `json:"canceled,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Runner evaluates many documents with bounded concurrency.
type Runner struct {
	evaluator *Evaluator
	source    documents.Source
	settings  settings.Repository
	metrics   *Metrics
	logger    logging.Logger
}

// NewRunner wires a batch runner. repo may be nil, in which case every
// document uses default settings.
func NewRunner(evaluator *Evaluator, source documents.Source, repo settings.Repository, logger logging.Logger) (*Runner, error) {
	if evaluator == nil {
		return nil, errors.New("regression: nil evaluator")
	}
	if source == nil {
		return nil, errors.New("regression: nil document source")
	}
	if logger == nil {
		return nil, errors.New("regression: nil logger provided")
	}
	return &Runner{
		evaluator: evaluator,
		source:    source,
		settings:  repo,
		metrics:   evaluator.metrics,
		logger:    logger.With(logging.Field{Key: "component", Value: "batch"}),
	}, nil
}

// batchRun holds the mutable state of one RunDetectionNow call.
type batchRun struct {
	mu       sync.Mutex
	result   BatchResult
	done     int
	progress ProgressFunc
}

func (b *batchRun) record(id string, outcome DocumentOutcome, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch outcome {
	case OutcomeSkipped:
		b.result.Skipped++
	case OutcomeFailed:
		b.result.Failed++
		b.result.Failures = append(b.result.Failures, DocumentFailure{DocumentID: id, Error: err.Error()})
	case OutcomeWarnings:
		b.result.Processed++
		b.result.WithWarnings++
	default:
		b.result.Processed++
	}
	b.done++

	ev := BatchEvent{
		RunID:      b.result.RunID,
		Type:       BatchEventDocument,
		DocumentID: id,
		Outcome:    outcome,
		Done:       b.done,
		Total:      b.result.Requested,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	b.emit(ev)
}

// emit must be called with mu held.
func (b *batchRun) emit(ev BatchEvent) {
	if b.progress != nil {
		b.progress(ev)
	}
}

// RunDetectionNow evaluates ids (every document in the source when ids is
// empty). Documents whose type is not enabled or whose detection is
// disabled are skipped. A failure in one document is recorded and the run
// continues. Canceling ctx stops new documents from starting; the result
// then covers the documents that ran, and the error is ctx.Err().
func (r *Runner) RunDetectionNow(ctx context.Context, cfg Config, ids []string, progress ProgressFunc) (BatchResult, error) {
	cfg, _ = cfg.Normalize()

	run := &batchRun{
		result: BatchResult{
			RunID:     uuid.NewString(),
			StartedAt: r.evaluator.now(),
			Failures:  []DocumentFailure{},
		},
		progress: progress,
	}
	logger := r.logger.With(logging.Field{Key: "run_id", Value: run.result.RunID})

	if len(ids) == 0 {
		listed, err := r.source.List(ctx)
		if err != nil {
			return run.result, fmt.Errorf("list documents: %w", err)
		}
		ids = listed
	}
	ids = dedupe(ids)
	run.result.Requested = len(ids)

	run.mu.Lock()
	run.emit(BatchEvent{RunID: run.result.RunID, Type: BatchEventStarted, Total: len(ids)})
	run.mu.Unlock()

	logger.Info("batch run started",
		logging.Field{Key: "documents", Value: len(ids)},
		logging.Field{Key: "workers", Value: cfg.BatchWorkers})

	if !cfg.Enabled {
		for _, id := range ids {
			run.record(id, OutcomeSkipped, nil)
		}
		return r.finish(run, logger, nil), nil
	}

	g := new(errgroup.Group)
	g.SetLimit(cfg.BatchWorkers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcome, err := r.processOne(ctx, cfg, id)
			r.metrics.observeBatchDocument(string(outcome))
			if err != nil {
				logger.Warn("document failed",
					logging.Field{Key: "document_id", Value: id},
					logging.Err(err))
			}
			run.record(id, outcome, err)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return r.finish(run, logger, err), err
	}
	return r.finish(run, logger, nil), nil
}

func (r *Runner) finish(run *batchRun, logger logging.Logger, cancelErr error) BatchResult {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.result.Eligible = run.result.Processed + run.result.Failed
	run.result.Canceled = cancelErr != nil
	run.result.EndedAt = r.evaluator.now()
	r.metrics.observeBatchRun()

	result := run.result
	result.Failures = append([]DocumentFailure{}, run.result.Failures...)
	run.emit(BatchEvent{
		RunID:  result.RunID,
		Type:   BatchEventFinished,
		Done:   run.done,
		Total:  result.Requested,
		Result: &result,
	})

	logger.Info("batch run finished",
		logging.Field{Key: "processed", Value: result.Processed},
		logging.Field{Key: "with_warnings", Value: result.WithWarnings},
		logging.Field{Key: "failed", Value: result.Failed},
		logging.Field{Key: "skipped", Value: result.Skipped},
		logging.Field{Key: "canceled", Value: result.Canceled})
	return result
}

// processOne evaluates a single document under its own timeout.
func (r *Runner) processOne(ctx context.Context, cfg Config, id string) (outcome DocumentOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			outcome, err = OutcomeFailed, fmt.Errorf("panic evaluating document: %v", p)
		}
	}()

	docCtx, cancel := context.WithTimeout(ctx, cfg.DocumentTimeout)
	defer cancel()

	doc, err := r.source.Get(docCtx, id)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("load document: %w", err)
	}
	if !cfg.TypeEnabled(doc.Type) {
		return OutcomeSkipped, nil
	}

	docSettings := model.DocumentSettings{DocumentID: id}
	if r.settings != nil {
		docSettings, err = r.settings.Get(docCtx, id)
		if err != nil {
			return OutcomeFailed, fmt.Errorf("load settings: %w", err)
		}
	}
	if docSettings.DetectionDisabled {
		return OutcomeSkipped, nil
	}

	status, err := r.evaluator.Evaluate(docCtx, doc, cfg, docSettings)
	if err != nil {
		return OutcomeFailed, err
	}
	if status.HasRegressions() {
		return OutcomeWarnings, nil
	}
	return OutcomeClean, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
