package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/regress/internal/config"
	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "regress.db")
	return cfg
}

func TestNewApplication_WiresComponents(t *testing.T) {
	logger := &testutil.DummyLogger{}
	a, err := NewApplication(testConfig(t), logger)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Settings)
	assert.NotNil(t, a.Documents)
	assert.NotNil(t, a.Evaluator)
	assert.NotNil(t, a.Runner)

	srv, err := a.NewServer()
	require.NoError(t, err)
	assert.NotNil(t, srv)
}

func TestNewApplication_LogsAdjustments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Detector.LinkDropPercent = 250
	cfg.Regression.BaselinePolicy = "newest-ish"

	logger := &testutil.DummyLogger{}
	a, err := NewApplication(cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2, logger.WarnCount())
	assert.Equal(t, 100.0, a.Engine.Detector.LinkDropPercent)
}

func TestApplication_StatePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Analyzer.SiteURL = "https://example.com"

	first, err := NewApplication(cfg, &testutil.DummyLogger{})
	require.NoError(t, err)
	doc := model.Document{ID: "doc-1", Type: "post",
		Markup: `<h1>T</h1><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a><a href="/d">d</a>`}
	require.NoError(t, first.Documents.Put(ctx, doc))
	_, err = first.Evaluator.Evaluate(ctx, doc, first.Engine, model.DocumentSettings{DocumentID: "doc-1"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewApplication(cfg, &testutil.DummyLogger{})
	require.NoError(t, err)
	defer second.Close()

	stored, err := second.Documents.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Markup, stored.Markup)

	history, err := second.Evaluator.History(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	doc.Markup = `<h1>T</h1><a href="/a">a</a>`
	status, err := second.Evaluator.Evaluate(ctx, doc, second.Engine, model.DocumentSettings{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.True(t, status.HasBaseline)
	require.Len(t, status.Warnings, 1)
	assert.Equal(t, model.WarningLinkDrop, status.Warnings[0].Type)
}

func TestNewApplication_RejectsNil(t *testing.T) {
	_, err := NewApplication(nil, &testutil.DummyLogger{})
	assert.Error(t, err)
	_, err = NewApplication(testConfig(t), nil)
	assert.Error(t, err)
}
