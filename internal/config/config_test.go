package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marksync/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{
		// Personal access token, see the developer console.
		"access_token": "tok-123",
		"workspace_gid": "42",
		"sources": [
			{"project_gid": "1201", "name": "Relaunch", "path": "Projects/relaunch.md"},
			{"project_gid": "77", "name": "My Tasks", "path": "my-tasks.md", "user_list": true},
		],
		"display": {"show_due_date": false, "show_assignee": true, "show_completed": true},
		"sync_interval_minutes": 10,
	}`)

	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "tok-123", cfg.AccessToken)
	assert.Equal(t, "42", cfg.WorkspaceGID)
	require.Len(t, cfg.Sources, 2)
	assert.True(t, cfg.Sources[1].UserList)
	assert.False(t, cfg.Display.ShowDueDate)
	assert.True(t, cfg.Display.ShowCompleted)
	assert.Equal(t, 10, cfg.SyncIntervalMinutes)
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `{"access_token": "tok"}`)

	cfg, err := config.Load(path, true)
	require.NoError(t, err)

	// Omitted fields keep their defaults.
	assert.True(t, cfg.Display.ShowDueDate)
	assert.True(t, cfg.Display.ShowAssignee)
	assert.False(t, cfg.Display.ShowCompleted)
	assert.Equal(t, config.DefaultSyncIntervalMinutes, cfg.SyncIntervalMinutes)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "none.json")

	cfg, err := config.Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	_, err = config.Load(missing, true)
	assert.ErrorIs(t, err, config.ErrNotFound)
}

func TestLoadInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "broken syntax", content: `{"access_token": `},
		{name: "incomplete source", content: `{"sources": [{"project_gid": "1"}]}`},
		{
			name: "duplicate document path",
			content: `{"sources": [
				{"project_gid": "1", "name": "A", "path": "doc.md"},
				{"project_gid": "2", "name": "B", "path": "doc.md"}
			]}`,
		},
		{name: "zero interval", content: `{"sync_interval_minutes": -1}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Load(writeConfig(t, tt.content), true)
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestRequireRemote(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.ErrorIs(t, config.RequireRemote(cfg), config.ErrNoToken)

	cfg.AccessToken = "tok"
	assert.ErrorIs(t, config.RequireRemote(cfg), config.ErrNoWorkspace)

	cfg.WorkspaceGID = "42"
	assert.NoError(t, config.RequireRemote(cfg))
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := config.Default()
	cfg.AccessToken = "tok"
	cfg.Sources = []config.Source{{ProjectGID: "1", Name: "A", Path: "a.md"}}

	require.NoError(t, config.Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := config.Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/etc/m.json", config.Path("/etc/m.json", nil))

	env := map[string]string{"XDG_CONFIG_HOME": "/xdg"}
	assert.Equal(t, filepath.Join("/xdg", "marksync", "config.json"), config.Path("", env))

	env = map[string]string{"HOME": "/home/u"}
	assert.Equal(t, filepath.Join("/home/u", ".config", "marksync", "config.json"), config.Path("", env))
}
