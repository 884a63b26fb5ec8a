package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"
)

// Config holds application configuration.
type Config struct {
	// BackendHost is the host the local backend listens on.
	BackendHost string `json:"backend_host,omitempty"`

	// BackendPort is the port the local backend listens on.
	BackendPort int `json:"backend_port,omitempty"`

	// MaxHistory caps the clipboard history size. Oldest entries are
	// evicted first when the cap is exceeded.
	MaxHistory int `json:"max_history,omitempty"`

	// PollIntervalMS is the pasteboard polling interval in milliseconds.
	PollIntervalMS int `json:"poll_interval_ms,omitempty"`

	// MonitorIntervalSec is the supervisor process-liveness check interval.
	MonitorIntervalSec int `json:"monitor_interval_sec,omitempty"`

	// HealthIntervalSec is the supervisor HTTP health probe interval.
	HealthIntervalSec int `json:"health_interval_sec,omitempty"`

	// MaxRestartAttempts bounds automatic backend restarts before the
	// supervisor gives up and disables itself.
	MaxRestartAttempts int `json:"max_restart_attempts,omitempty"`

	// DisableAutoRestart turns off automatic backend restarts entirely.
	DisableAutoRestart bool `json:"disable_auto_restart,omitempty"`

	// PythonPath overrides interpreter discovery with an explicit path.
	PythonPath string `json:"python_path,omitempty"`

	// ScriptPath overrides backend entry script discovery.
	ScriptPath string `json:"script_path,omitempty"`

	// LogLevel is the slog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// LogFormat selects log output: auto, text, or json.
	LogFormat string `json:"log_format,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BackendHost:        "localhost",
		BackendPort:        8000,
		MaxHistory:         50,
		PollIntervalMS:     500,
		MonitorIntervalSec: 5,
		HealthIntervalSec:  30,
		MaxRestartAttempts: 5,
		LogLevel:           "info",
		LogFormat:          "auto",
	}
}

// BaseURL returns the backend base URL, e.g. "http://localhost:8000".
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.BackendHost, c.BackendPort)
}

// Load loads configuration from baseDir/config.json, applying defaults and
// then environment overrides. Returns defaults if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of
// ~/.simplecp.
func Load(baseDir string) (*Config, error) {
	overlay, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg := Merge(DefaultConfig(), overlay)
	applyEnv(cfg)
	return cfg, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for non-zero scalars; booleans are OR-ed.
func Merge(base, overlay *Config) *Config {
	result := *base

	if overlay.BackendHost != "" {
		result.BackendHost = overlay.BackendHost
	}
	if overlay.BackendPort != 0 {
		result.BackendPort = overlay.BackendPort
	}
	if overlay.MaxHistory != 0 {
		result.MaxHistory = overlay.MaxHistory
	}
	if overlay.PollIntervalMS != 0 {
		result.PollIntervalMS = overlay.PollIntervalMS
	}
	if overlay.MonitorIntervalSec != 0 {
		result.MonitorIntervalSec = overlay.MonitorIntervalSec
	}
	if overlay.HealthIntervalSec != 0 {
		result.HealthIntervalSec = overlay.HealthIntervalSec
	}
	if overlay.MaxRestartAttempts != 0 {
		result.MaxRestartAttempts = overlay.MaxRestartAttempts
	}
	result.DisableAutoRestart = base.DisableAutoRestart || overlay.DisableAutoRestart
	if overlay.PythonPath != "" {
		result.PythonPath = overlay.PythonPath
	}
	if overlay.ScriptPath != "" {
		result.ScriptPath = overlay.ScriptPath
	}
	if overlay.LogLevel != "" {
		result.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		result.LogFormat = overlay.LogFormat
	}

	return &result
}

// applyEnv applies SIMPLECP_BACKEND_HOST / SIMPLECP_BACKEND_PORT overrides.
// Invalid port values are ignored.
func applyEnv(cfg *Config) {
	if host := os.Getenv("SIMPLECP_BACKEND_HOST"); host != "" {
		cfg.BackendHost = host
	}
	if portStr := os.Getenv("SIMPLECP_BACKEND_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port <= 65535 {
			cfg.BackendPort = port
		}
	}
}

// DefaultBaseDir returns ~/.simplecp, the default data directory.
func DefaultBaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".simplecp"), nil
}
