// Package config handles configuration loading and notes home resolution.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/notevault/internal/models"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// EmbeddingConfig holds settings for the embedding provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "none" | "ollama" | "openai" | "openrouter"
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"` // #nosec G117 -- APIKey is an intentional field name for the embedding provider's authentication token
}

// Enabled reports whether a real embedding provider is configured.
func (e EmbeddingConfig) Enabled() bool {
	return e.Provider != "" && e.Provider != "none"
}

// UIConfig controls the terminal interface.
type UIConfig struct {
	DefaultColor string `yaml:"default_color"` // color given to notes created from the list view
	DateFormat   string `yaml:"date_format"`   // "relative" or a Go time layout
}

// LogConfig controls the log level of long-running commands.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// SearchConfig controls CLI and MCP result sizes.
type SearchConfig struct {
	Limit int `yaml:"limit"` // 0 means unlimited
}

// NotesConfig is the root per-home configuration.
type NotesConfig struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
	Search    SearchConfig    `yaml:"search"`
}

// Default returns a NotesConfig populated with sensible defaults.
func Default() *NotesConfig {
	return &NotesConfig{
		Embedding: EmbeddingConfig{
			Provider: "none",
		},
		UI: UIConfig{
			DateFormat: "relative",
		},
		Log: LogConfig{
			Level: "info",
		},
		Search: SearchConfig{
			Limit: 20,
		},
	}
}

// Load reads a per-home config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*NotesConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Decode via a plain map so only the keys that are present overwrite defaults.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config.Load %s: %w", path, err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("config.Load %s: %w", path, err)
	}

	cfg.Embedding.Provider = strings.ToLower(strings.TrimSpace(cfg.Embedding.Provider))
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "none"
	}
	if cfg.UI.DateFormat == "" {
		cfg.UI.DateFormat = "relative"
	}
	cfg.UI.DefaultColor = models.NormalizeColor(cfg.UI.DefaultColor)
	if err := models.ValidateColor(cfg.UI.DefaultColor); err != nil {
		return nil, fmt.Errorf("config.Load ui.default_color: %w", err)
	}
	if cfg.Search.Limit < 0 {
		cfg.Search.Limit = 0
	}
	return cfg, nil
}

// SlogLevel maps Log.Level onto a slog.Level, defaulting to info.
func (c *NotesConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ---------------------------------------------------------------------------
// Notes home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global notevault config file.
// This file stores only notes_home.
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "notevault", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveNotesHome returns the notes home path and the source of the resolution.
// Priority: NOTES_HOME env → persisted global config → ~/.notes
// source is one of "env", "config", or "default".
func ResolveNotesHome() (path, source string) {
	if env := os.Getenv("NOTES_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedNotesHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".notes"), "default"
}

// GetNotesHome returns the resolved notes home path.
func GetNotesHome() string {
	path, _ := ResolveNotesHome()
	return path
}

// DBPath returns the database file inside home.
func DBPath(home string) string { return filepath.Join(home, "notes.db") }

// FilePath returns the per-home config file inside home.
func FilePath(home string) string { return filepath.Join(home, "config.yaml") }

// LogPath returns the log file the TUI writes to inside home.
func LogPath(home string) string { return filepath.Join(home, "notes.log") }

func readGlobal() (map[string]any, string, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return nil, cfgPath, nil
	}
	if err != nil {
		return nil, cfgPath, err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		// A corrupt global file behaves as if it were absent.
		return nil, cfgPath, nil
	}
	return raw, cfgPath, nil
}

// GetPersistedNotesHome reads notes_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedNotesHome() (string, bool, error) {
	raw, _, err := readGlobal()
	if err != nil || raw == nil {
		return "", false, err
	}

	val, _ := raw["notes_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedNotesHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedNotesHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	raw, cfgPath, err := readGlobal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["notes_home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedNotesHome removes notes_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedNotesHome() (bool, error) {
	raw, cfgPath, err := readGlobal()
	if err != nil || raw == nil {
		return false, err
	}
	if _, ok := raw["notes_home"]; !ok {
		return false, nil
	}
	delete(raw, "notes_home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
