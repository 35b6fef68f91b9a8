// Package config loads and saves the persisted marksync configuration.
//
// The config file is JSONC (JSON with comments), standardized through
// hujson before decoding so users can annotate their source list.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"
)

// Sentinel errors surfaced to the CLI.
var (
	ErrNotFound       = errors.New("config file not found")
	ErrInvalid        = errors.New("invalid config file")
	ErrNoToken        = errors.New("access_token is not set (run: marksync login)")
	ErrNoWorkspace    = errors.New("workspace_gid is not set")
	ErrSourceInvalid  = errors.New("source needs project_gid, name, and path")
	ErrDuplicatePath  = errors.New("two sources share the same document path")
	ErrBadInterval    = errors.New("sync_interval_minutes must be positive")
	errConfigFileRead = errors.New("cannot read config file")
)

// DefaultSyncIntervalMinutes is used when the config does not set one.
const DefaultSyncIntervalMinutes = 5

const (
	dirPerms  = 0o750
	filePerms = 0o600
)

// Source pairs one remote task list with one local document.
type Source struct {
	// ProjectGID is the remote list identifier: a project gid, or a user
	// task list gid when UserList is true.
	ProjectGID string `json:"project_gid"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	UserList   bool   `json:"user_list,omitempty"`
}

// Display holds the line-format toggles applied during reconciliation.
type Display struct {
	ShowDueDate   bool `json:"show_due_date"`
	ShowAssignee  bool `json:"show_assignee"`
	ShowCompleted bool `json:"show_completed"`
}

// Config holds all configuration options.
type Config struct {
	AccessToken         string   `json:"access_token"`
	WorkspaceGID        string   `json:"workspace_gid"`
	Sources             []Source `json:"sources"`
	Display             Display  `json:"display"`
	SyncIntervalMinutes int      `json:"sync_interval_minutes"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Display: Display{
			ShowDueDate:  true,
			ShowAssignee: true,
		},
		SyncIntervalMinutes: DefaultSyncIntervalMinutes,
	}
}

// Path returns the config file location: an explicit path when given,
// otherwise $XDG_CONFIG_HOME/marksync/config.json, falling back to
// ~/.config/marksync/config.json.
func Path(explicit string, env map[string]string) string {
	if explicit != "" {
		return explicit
	}

	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "marksync", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "marksync", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "marksync", "config.json")
	}

	return ""
}

// Load reads and validates the config file at path. A missing file yields
// the defaults when mustExist is false.
func Load(path string, mustExist bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) {
			if mustExist {
				return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
			}

			return cfg, nil
		}

		return Config{}, fmt.Errorf("%w: %s", errConfigFileRead, path)
	}

	// Decoding over the defaults means omitted fields keep their default
	// value while present fields override it, including explicit false.
	parseErr := parse(data, &cfg)
	if parseErr != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, path, parseErr)
	}

	validateErr := Validate(cfg)
	if validateErr != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrInvalid, path, validateErr)
	}

	return cfg, nil
}

// Save writes the config as formatted JSON, creating parent folders.
func Save(path string, cfg Config) error {
	mkdirErr := os.MkdirAll(filepath.Dir(path), dirPerms)
	if mkdirErr != nil {
		return fmt.Errorf("creating config directory: %w", mkdirErr)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	data = append(data, '\n')

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	writeErr := atomic.WriteFile(path, bytes.NewReader(data))
	if writeErr != nil {
		return fmt.Errorf("writing config: %w", writeErr)
	}

	// The file holds an access token; keep it owner-readable only.
	if isNew {
		chmodErr := os.Chmod(path, filePerms)
		if chmodErr != nil {
			return fmt.Errorf("setting config permissions: %w", chmodErr)
		}
	}

	return nil
}

// Validate checks the structural invariants of a config. Token presence is
// checked separately by commands that talk to the remote, so a fresh install
// can still run login and print-config.
func Validate(cfg Config) error {
	if cfg.SyncIntervalMinutes <= 0 {
		return ErrBadInterval
	}

	seen := make(map[string]string, len(cfg.Sources))

	for _, src := range cfg.Sources {
		if src.ProjectGID == "" || src.Name == "" || src.Path == "" {
			return fmt.Errorf("%w: %q", ErrSourceInvalid, src.Name)
		}

		if other, dup := seen[src.Path]; dup {
			return fmt.Errorf("%w: %q and %q", ErrDuplicatePath, other, src.Name)
		}

		seen[src.Path] = src.Name
	}

	return nil
}

// RequireRemote checks the fields every remote-facing command needs.
func RequireRemote(cfg Config) error {
	if cfg.AccessToken == "" {
		return ErrNoToken
	}

	if cfg.WorkspaceGID == "" {
		return ErrNoWorkspace
	}

	return nil
}

func parse(data []byte, cfg *Config) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	unmarshalErr := json.Unmarshal(standardized, cfg)
	if unmarshalErr != nil {
		return fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return nil
}

// Format returns the config as formatted JSON with the token redacted.
func Format(cfg Config) (string, error) {
	redacted := cfg
	if redacted.AccessToken != "" {
		redacted.AccessToken = "(set)"
	}

	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
