package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raysh454/regress/internal/documents"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/regression"
	"github.com/raysh454/regress/internal/settings"
)

// Deps are the engine components the server exposes.
type Deps struct {
	Evaluator *regression.Evaluator
	Runner    *regression.Runner
	Documents documents.Source
	Settings  settings.Repository
	Metrics   *regression.Metrics
}

// Server is the HTTP + WebSocket API surface for regress.
type Server struct {
	cfg       Config
	evaluator *regression.Evaluator
	runner    *regression.Runner
	documents documents.Source
	settings  settings.Repository
	metrics   *regression.Metrics
	router    chi.Router
	upgrader  websocket.Upgrader
	logger    logging.Logger
}

// NewServer wires routes over deps.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Evaluator == nil || deps.Runner == nil {
		return nil, errors.New("server: evaluator and runner are required")
	}
	if deps.Documents == nil || deps.Settings == nil {
		return nil, errors.New("server: document source and settings repository are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		evaluator: deps.Evaluator,
		runner:    deps.Runner,
		documents: deps.Documents,
		settings:  deps.Settings,
		metrics:   deps.Metrics,
		router:    chi.NewRouter(),
		logger:    logger,
		upgrader: websocket.Upgrader{
			// The only websocket route sits behind requireAdmin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/documents/{id}", s.optionsHandler("PUT"))
	r.Options("/regression/{id}", s.optionsHandler("GET"))
	r.Options("/regression/{id}/mark-intentional", s.optionsHandler("POST"))
	r.Options("/regression/{id}/reset-baseline", s.optionsHandler("POST"))
	r.Options("/regression/{id}/settings", s.optionsHandler("GET, POST"))
	r.Options("/run-detection", s.optionsHandler("POST"))

	// Save hook
	r.Put("/documents/{id}", s.handleSaveDocument)

	// Regression status
	r.Get("/regression/{id}", s.handleGetStatus)
	r.Get("/regression/{id}/history", s.handleGetHistory)
	r.Post("/regression/{id}/mark-intentional", s.handleMarkIntentional)
	r.Post("/regression/{id}/reset-baseline", s.handleResetBaseline)
	r.Get("/regression/{id}/settings", s.handleGetSettings)
	r.Post("/regression/{id}/settings", s.handleUpdateSettings)

	// Batch runs
	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/run-detection", s.handleRunDetection)
		r.Get("/ws/run-detection", s.handleRunDetectionWS)
	})

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// requireAdmin checks the bearer token. Browsers cannot set headers on
// websocket upgrades, so a token query parameter is accepted as well.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin endpoints are disabled")
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			s.logger.Warn("rejected admin request", logging.Field{Key: "path", Value: r.URL.Path})
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}
	if r.ContentLength > 0 {
		fields = append(fields, logging.Field{Key: "bytes", Value: r.ContentLength})
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", logging.Field{Key: "addr", Value: srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// --- HTTP handlers ---

// Save hook

func (s *Server) handleSaveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body SaveDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding save document body", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	doc := model.Document{ID: id, Type: body.Type, Markup: body.Content}
	if body.PublishedAt != nil {
		doc.PublishedAt = *body.PublishedAt
	}
	if err := s.documents.Put(r.Context(), doc); err != nil {
		s.logger.Warn("storing document", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !s.cfg.Engine.Enabled {
		writeJSON(w, http.StatusOK, &model.RegressionStatus{DocumentID: id, Warnings: []model.Warning{}})
		return
	}

	// Re-read so a publish time recorded by an earlier save is used.
	stored, err := s.documents.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docSettings, err := s.settings.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status, err := s.evaluator.Evaluate(r.Context(), stored, s.cfg.Engine, docSettings)
	if err != nil && !errors.Is(err, regression.ErrStorageUnavailable) {
		s.logger.Warn("evaluating document", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("evaluated document",
		logging.Field{Key: "document_id", Value: id},
		logging.Field{Key: "warnings", Value: len(status.Warnings)})
	writeJSON(w, http.StatusOK, status)
}

// Regression status

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if status, ok := s.evaluator.Cached(id); ok {
		writeJSON(w, http.StatusOK, status)
		return
	}

	status, code, err := s.peek(r.Context(), id)
	if err != nil {
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// peek runs a read-only evaluation of the stored document.
func (s *Server) peek(ctx context.Context, id string) (*model.RegressionStatus, int, error) {
	doc, err := s.documents.Get(ctx, id)
	if errors.Is(err, documents.ErrNotFound) {
		return nil, http.StatusNotFound, fmt.Errorf("document %q not found", id)
	}
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	docSettings, err := s.settings.Get(ctx, id)
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	status, err := s.evaluator.Peek(ctx, doc, s.cfg.Engine, docSettings)
	if err != nil && !errors.Is(err, regression.ErrStorageUnavailable) {
		return nil, http.StatusInternalServerError, err
	}
	return status, http.StatusOK, nil
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := s.evaluator.History(r.Context(), id)
	if err != nil {
		s.logger.Warn("reading history", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if history == nil {
		history = []model.Metrics{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleMarkIntentional(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	n, err := s.evaluator.MarkIntentional(r.Context(), id)
	if errors.Is(err, regression.ErrNoEvaluation) {
		if _, code, perr := s.peek(r.Context(), id); perr != nil {
			writeError(w, code, perr.Error())
			return
		}
		n, err = s.evaluator.MarkIntentional(r.Context(), id)
	}
	if err != nil {
		s.logger.Warn("marking intentional", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, MarkIntentionalResponse{Acknowledged: n})
}

func (s *Server) handleResetBaseline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.evaluator.ResetBaseline(r.Context(), id, s.cfg.Engine); err != nil {
		s.logger.Warn("resetting baseline", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Info("reset baseline", logging.Field{Key: "document_id", Value: id})
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	docSettings, err := s.settings.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, docSettings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body settings.Update
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.logger.Warn("decoding settings body", logging.Err(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	merged, err := settings.Merge(r.Context(), s.settings, id, body)
	if err != nil {
		s.logger.Warn("saving settings", logging.Field{Key: "document_id", Value: id}, logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.evaluator.Forget(id)
	s.logger.Info("updated settings",
		logging.Field{Key: "document_id", Value: id},
		logging.Field{Key: "detection_disabled", Value: merged.DetectionDisabled},
		logging.Field{Key: "is_short_form", Value: merged.IsShortForm})
	writeJSON(w, http.StatusOK, merged)
}

// Batch runs

func (s *Server) handleRunDetection(w http.ResponseWriter, r *http.Request) {
	var body RunDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.runner.RunDetectionNow(r.Context(), s.cfg.Engine, body.IDs, nil)
	if err != nil {
		s.logger.Warn("batch run", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RunDetectionResponse{
		Count:     result.WithWarnings,
		Processed: result.Processed,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
		RunID:     result.RunID,
	})
}

// WebSockets

func (s *Server) handleRunDetectionWS(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if q := r.URL.Query().Get("ids"); q != "" {
		ids = strings.Split(q, ",")
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan regression.BatchEvent, 64)
	go func() {
		defer close(events)
		_, _ = s.runner.RunDetectionNow(ctx, s.cfg.Engine, ids, func(ev regression.BatchEvent) {
			if ev.Type == regression.BatchEventFinished {
				events <- ev
				return
			}
			// Non-blocking send; drop progress if the client is slow.
			select {
			case events <- ev:
			default:
			}
		})
	}()

	if err := streamEvents(conn, events, wsWriteTimeout, cancel); err != nil {
		s.logger.Warn("streaming batch events", logging.Err(err))
	}
}

// wsWriteTimeout bounds each event write so a stalled client cannot hold the batch.
const wsWriteTimeout = 10 * time.Second

type eventWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
}

// streamEvents writes events to w until the channel closes. The first failed
// write cancels the run; remaining events are drained without writing.
func streamEvents(w eventWriter, events <-chan regression.BatchEvent, timeout time.Duration, cancel context.CancelFunc) error {
	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue
		}
		if err := w.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			writeErr = err
			cancel()
			continue
		}
		if err := w.WriteJSON(ev); err != nil {
			// Assume client disconnected; stop the run and drain.
			writeErr = err
			cancel()
		}
	}
	return writeErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
