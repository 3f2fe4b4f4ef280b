// Package app assembles the regress runtime: one SQLite database shared by
// the snapshot store, the settings repository and the document source, plus
// the evaluator and batch runner on top of them.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/raysh454/regress/internal/config"
	"github.com/raysh454/regress/internal/database"
	"github.com/raysh454/regress/internal/documents"
	"github.com/raysh454/regress/internal/logging"
	"github.com/raysh454/regress/internal/regression"
	"github.com/raysh454/regress/internal/server"
	"github.com/raysh454/regress/internal/settings"
	"github.com/raysh454/regress/internal/snapshot"
)

// Application is the runtime state container. Commands build one, use its
// components and Close it when done.
type Application struct {
	Config *config.Config
	// Engine is the clamped engine configuration passed to every evaluation.
	Engine regression.Config
	Logger logging.Logger

	DB        *sql.DB
	Store     snapshot.Store
	Settings  settings.Repository
	Documents documents.Source
	Metrics   *regression.Metrics
	Evaluator *regression.Evaluator
	Runner    *regression.Runner
}

// NewApplication opens the database named by cfg and wires every component
// over it. Configuration values that had to be clamped are logged once.
func NewApplication(cfg *config.Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		return nil, errors.New("app: nil logger provided")
	}

	engine, adjustments := cfg.RegressionConfig()
	for _, msg := range adjustments {
		logger.Warn("configuration adjusted", logging.Field{Key: "detail", Value: msg})
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &Application{Config: cfg, Engine: engine, Logger: logger, DB: db}
	if err := a.wire(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("application ready",
		logging.Field{Key: "database", Value: cfg.DatabasePath},
		logging.Field{Key: "rolling_count", Value: a.Store.Capacity()},
		logging.Field{Key: "baseline_policy", Value: string(engine.BaselinePolicy)},
		logging.Field{Key: "enabled", Value: engine.Enabled})
	return a, nil
}

func (a *Application) wire() error {
	store, err := snapshot.NewSQLiteStore(a.DB, a.Config.SnapshotRollingCount, a.Logger)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	repo, err := settings.NewSQLiteRepository(a.DB, a.Logger)
	if err != nil {
		return fmt.Errorf("settings repository: %w", err)
	}
	src, err := documents.NewSQLiteSource(a.DB, a.Logger)
	if err != nil {
		return fmt.Errorf("document source: %w", err)
	}

	metrics := regression.NewMetrics()
	ev, err := regression.NewEvaluator(store, repo, a.Logger, regression.WithMetrics(metrics))
	if err != nil {
		return err
	}
	runner, err := regression.NewRunner(ev, src, repo, a.Logger)
	if err != nil {
		return err
	}

	a.Store, a.Settings, a.Documents = store, repo, src
	a.Metrics, a.Evaluator, a.Runner = metrics, ev, runner
	return nil
}

// NewServer builds the HTTP surface over the application's components.
func (a *Application) NewServer() (*server.Server, error) {
	return server.NewServer(server.Config{
		ListenAddr:      a.Config.Server.ListenAddr,
		AdminToken:      a.Config.Server.AdminToken,
		Engine:          a.Engine,
		ShutdownTimeout: a.Config.Server.ShutdownTimeout,
		Logger:          a.Logger.With(logging.Field{Key: "component", Value: "server"}),
	}, server.Deps{
		Evaluator: a.Evaluator,
		Runner:    a.Runner,
		Documents: a.Documents,
		Settings:  a.Settings,
		Metrics:   a.Metrics,
	})
}

// Serve runs the HTTP server until ctx is canceled.
func (a *Application) Serve(ctx context.Context) error {
	srv, err := a.NewServer()
	if err != nil {
		return err
	}
	if a.Config.Server.AdminToken == "" {
		a.Logger.Warn("no admin token configured; batch endpoints are disabled")
	}
	return srv.ListenAndServe(ctx)
}

// Close releases the database. The store does not own it.
func (a *Application) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	a.Logger.Info("application shutdown")
	return a.DB.Close()
}
