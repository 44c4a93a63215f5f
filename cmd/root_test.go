package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmastore/internal/config"
	"dmastore/internal/engine"
	"dmastore/internal/observability"
	"dmastore/internal/testutil"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

type cliFixture struct {
	root       string
	configFile string
	cfg        *models.Config
	engine     *testutil.MockEngine
}

// newCLIFixture writes a config file pointing at placeholder inputs and
// routes engine connections to a sqlmock handle
func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)

	candidates, cubes := testutil.SuppressionInputs(t, root)
	cfg := &models.Config{
		Build: testutil.BuildInputs(t, root),
		Suppression: models.SuppressionConfig{
			CandidatesPath: candidates,
			TopN:           5,
		},
		Cubes:   cubes,
		Engine:  models.EngineConfig{Timeout: "1m"},
		History: models.HistoryConfig{Enabled: true, Path: filepath.Join(root, "state", "history.db")},
		Logging: models.LoggingConfig{Level: "error", Format: "json"},
	}
	configFile := filepath.Join(root, "config.yaml")
	require.NoError(t, config.Save(cfg, configFile))

	mock, connect := testutil.NewMockEngine(t)
	original := newConnector
	newConnector = func(models.EngineConfig, *observability.Logger) (engine.Connector, error) {
		return connect, nil
	}
	t.Cleanup(func() { newConnector = original })

	return &cliFixture{root: root, configFile: configFile, cfg: cfg, engine: mock}
}

// run executes the CLI with the fixture config and returns stdout
func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, _ := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", f.configFile}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	root, _ := newRootCmd()
	var b bytes.Buffer
	root.SetOut(&b)
	root.SetErr(&b)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())

	output := b.String()
	assert.Contains(t, output, "Available Commands:")
	for _, name := range []string{"build", "suppress", "series", "outliers", "history", "init", "version"} {
		assert.Contains(t, output, name)
	}
}

func TestInvalidCommand(t *testing.T) {
	root, _ := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"invalid-command"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestVersionCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dmastore version dev")
}

func TestInvalidConfigFile(t *testing.T) {
	f := newCLIFixture(t)
	testutil.WriteFile(t, f.root, "config.yaml", "build: [unclosed")

	_, err := f.run(t, "build")
	require.Error(t, err)
	assert.Zero(t, f.engine.Calls)
}

func TestMissingExplicitConfigFile(t *testing.T) {
	f := newCLIFixture(t)
	f.configFile = filepath.Join(f.root, "missing.yaml")

	_, err := f.run(t, "build")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
	assert.Zero(t, f.engine.Calls)
}

func TestFlagsOverrideConfig(t *testing.T) {
	f := newCLIFixture(t)

	root, a := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", f.configFile, "--threads", "3", "history", "--limit", "1"})
	require.NoError(t, root.Execute())

	assert.Equal(t, 3, a.cfg.Engine.Threads)
	assert.Equal(t, f.cfg.Build.FactsPath, a.cfg.Build.FactsPath)
	assert.Equal(t, f.cfg.Build.OutputPath, a.cfg.Analysis.StorePath)
}
