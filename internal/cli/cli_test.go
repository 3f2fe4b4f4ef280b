package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/regress/internal/model"
	"github.com/raysh454/regress/internal/regression"
)

// resetFlags restores every flag in the tree to its default so commands run
// in one test process do not leak state into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

type env struct {
	dir    string
	config string
	db     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
log_level: error
analyzer:
  site_url: https://example.com
`), 0o600))
	return &env{dir: dir, config: cfg, db: filepath.Join(dir, "regress.db")}
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", e.config, "--db", e.db}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (e *env) file(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func links(n int) string {
	var b strings.Builder
	b.WriteString("<h1>Title</h1><p>Body text here.</p>")
	for i := 0; i < n; i++ {
		b.WriteString(`<a href="/p">p</a>`)
	}
	return b.String()
}

func TestAnalyzeCommand(t *testing.T) {
	e := newEnv(t)
	path := e.file(t, "post.html", `<h1>A</h1><h3>B</h3><p>one two three</p><a href="/x">x</a>`)

	out, err := e.run(t, "analyze", path)
	require.NoError(t, err)

	var m model.Metrics
	require.NoError(t, json.Unmarshal([]byte(out), &m))
	assert.Equal(t, 1, m.InternalLinkCount)
	assert.Equal(t, []int{1, 3}, m.HeadingOutline)
	assert.NotEmpty(t, m.ContentHash)
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "analyze", filepath.Join(e.dir, "nope.html"))
	assert.Error(t, err)
}

func TestEvaluateHistoryReset(t *testing.T) {
	e := newEnv(t)
	v1 := e.file(t, "v1.html", links(10))
	v2 := e.file(t, "v2.html", links(2))

	_, err := e.run(t, "evaluate", "42", v1)
	require.NoError(t, err)

	// A dry run reports the regression without recording it.
	out, err := e.run(t, "evaluate", "42", v2, "--dry-run")
	require.NoError(t, err)
	var status model.RegressionStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Len(t, status.Warnings, 1)
	assert.Equal(t, model.WarningLinkDrop, status.Warnings[0].Type)

	out, err = e.run(t, "history", "42")
	require.NoError(t, err)
	var history []model.Metrics
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Len(t, history, 1)

	_, err = e.run(t, "evaluate", "42", v2)
	require.NoError(t, err)

	out, err = e.run(t, "reset", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "baseline reset for 42")

	out, err = e.run(t, "history", "42")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Empty(t, history)
}

func TestListCommand(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "list")
	require.NoError(t, err)
	var rows []trackedDocument
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Empty(t, rows)

	_, err = e.run(t, "evaluate", "7", e.file(t, "a.html", links(3)))
	require.NoError(t, err)
	_, err = e.run(t, "evaluate", "7", e.file(t, "b.html", links(4)))
	require.NoError(t, err)

	out, err = e.run(t, "list")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].DocumentID)
	require.NotNil(t, rows[0].Latest)
	assert.Equal(t, 4, rows[0].Latest.InternalLinkCount)
}

func TestEvaluateCommand_InvalidPublished(t *testing.T) {
	e := newEnv(t)
	path := e.file(t, "v1.html", links(1))
	_, err := e.run(t, "evaluate", "1", path, "--published", "yesterday")
	assert.ErrorContains(t, err, "--published")
}

func TestSettingsCommand_Merges(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "settings", "7", "--short-form")
	require.NoError(t, err)
	out, err := e.run(t, "settings", "7", "--disable")
	require.NoError(t, err)

	var got model.DocumentSettings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.IsShortForm)
	assert.True(t, got.DetectionDisabled)

	out, err = e.run(t, "settings", "7")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.IsShortForm)
}

func TestRunCommand(t *testing.T) {
	e := newEnv(t)
	_, err := e.run(t, "evaluate", "a", e.file(t, "a.html", links(3)))
	require.NoError(t, err)
	_, err = e.run(t, "evaluate", "b", e.file(t, "b.html", links(3)))
	require.NoError(t, err)

	out, err := e.run(t, "run", "--progress")
	require.NoError(t, err)

	var result regression.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.Requested)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Failed)
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3")
	defer SetVersion("dev")
	assert.Equal(t, "1.2.3", rootCmd.Version)
}
