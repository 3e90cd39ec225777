package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCommands(t *testing.T) {
	app := newApp()
	names := make([]string, 0, len(app.Commands))
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"tui", "search", "serve", "check", "drop"}, names)
	assert.NotNil(t, app.Action, "tui runs when no command is given")
}

func TestSearchCommand(t *testing.T) {
	cfg := writeConfig(t, `
embedder:
  type: hashing
vector_index:
  type: sqlite
  path: `+filepath.Join(t.TempDir(), "index.db")+`
logging:
  level: error
`)
	require.NoError(t, newApp().Run([]string{"semsearch", "--config", cfg, "search", "--top-k", "2", "vector", "database"}))
	require.NoError(t, newApp().Run([]string{"semsearch", "--config", cfg, "search", "--json"}))
}

func TestCheckAndDropCommands(t *testing.T) {
	cfg := writeConfig(t, `
vector_index:
  type: badger
  badger:
    in_memory: true
logging:
  level: error
`)
	require.NoError(t, newApp().Run([]string{"semsearch", "--config", cfg, "check"}))
	require.NoError(t, newApp().Run([]string{"semsearch", "--config", cfg, "drop"}))
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "vector_index:\n  type: milvus\n")
	err := newApp().Run([]string{"semsearch", "--config", cfg, "drop"})
	assert.ErrorContains(t, err, "vector_index.type")
}

func TestLogLevelOverride(t *testing.T) {
	cfg := writeConfig(t, "vector_index:\n  type: memory\n")
	err := newApp().Run([]string{"semsearch", "--config", cfg, "--log-level", "LOUD", "drop"})
	assert.ErrorContains(t, err, "logging.level")
}
