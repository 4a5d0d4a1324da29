// Package config loads, validates, and persists termkeep settings. The
// config lives in TOML under ~/.termkeep/; invalid values are clamped back
// to their defaults with a warning rather than failing startup, and the
// watcher hot-reloads edits without a restart.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dbbuilder/termkeep/internal/logging"
)

var log = logging.ForComponent(logging.CompConfig)

const (
	// DirName is the per-user state directory under $HOME.
	DirName = ".termkeep"
	// FileName is the config file inside the state directory.
	FileName = "config.toml"
)

// Settings is the resolved configuration the monitor runs with.
type Settings struct {
	TargetProcesses            []string            `toml:"target_processes"`
	InactivityThresholdSeconds float64             `toml:"inactivity_threshold_seconds"`
	KeysToSend                 string              `toml:"keys_to_send"`
	PollingIntervalSeconds     float64             `toml:"polling_interval_seconds"`
	ProcessOverrides           map[string]Override `toml:"process_overrides"`
	Exclusions                 Exclusions          `toml:"exclusions"`
	Advanced                   Advanced            `toml:"advanced"`
	Logs                       Logs                `toml:"logs"`
	Web                        Web                 `toml:"web"`
	History                    History             `toml:"history"`
}

// Override customizes threshold and keystrokes for one process name.
type Override struct {
	InactivityThresholdSeconds float64 `toml:"inactivity_threshold_seconds"`
	KeysToSend                 string  `toml:"keys_to_send"`
}

// Exclusions drop windows by title or command-line substring.
type Exclusions struct {
	WindowTitles []string `toml:"window_titles"`
	CommandLines []string `toml:"command_lines"`
}

// Advanced holds the knobs most installs never touch.
type Advanced struct {
	MaxWindows                    int     `toml:"max_windows"`
	WindowOperationTimeoutSeconds float64 `toml:"window_operation_timeout_seconds"`
	RetryAttempts                 int     `toml:"retry_attempts"`
	RetryDelaySeconds             float64 `toml:"retry_delay_seconds"`
	UseHashSampling               bool    `toml:"use_hash_sampling"`
	HashSampleSize                int     `toml:"hash_sample_size"`
	MetricsIntervalSeconds        int     `toml:"metrics_interval_seconds"`
	InjectRatePerSecond           float64 `toml:"inject_rate_per_second"`
	InjectBurst                   int     `toml:"inject_burst"`
}

// Logs configures the log file and level.
type Logs struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Web configures the local status server.
type Web struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// History configures the action journal.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Default returns the settings used when no config file exists.
func Default() Settings {
	return Settings{
		TargetProcesses:            []string{"cmd.exe", "powershell.exe", "WindowsTerminal.exe"},
		InactivityThresholdSeconds: 30,
		KeysToSend:                 "continue{ENTER}",
		PollingIntervalSeconds:     5,
		ProcessOverrides:           map[string]Override{},
		Advanced: Advanced{
			MaxWindows:                    50,
			WindowOperationTimeoutSeconds: 5,
			RetryAttempts:                 3,
			RetryDelaySeconds:             1,
			UseHashSampling:               true,
			HashSampleSize:                1000,
			MetricsIntervalSeconds:        300,
			InjectRatePerSecond:           1,
			InjectBurst:                   3,
		},
		Logs: Logs{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 10,
			Compress:   true,
		},
		Web: Web{
			Enabled: false,
			Addr:    "127.0.0.1:8425",
		},
		History: History{
			Enabled: true,
		},
	}
}

// Duration accessors so callers never re-derive units.

func (s *Settings) InactivityThreshold() time.Duration {
	return secs(s.InactivityThresholdSeconds)
}

func (s *Settings) PollingInterval() time.Duration {
	return secs(s.PollingIntervalSeconds)
}

func (s *Settings) OperationTimeout() time.Duration {
	return secs(s.Advanced.WindowOperationTimeoutSeconds)
}

func (s *Settings) RetryDelay() time.Duration {
	return secs(s.Advanced.RetryDelaySeconds)
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// ThresholdOverrides returns the per-process threshold map in duration form.
func (s *Settings) ThresholdOverrides() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for proc, ov := range s.ProcessOverrides {
		if ov.InactivityThresholdSeconds > 0 {
			out[proc] = secs(ov.InactivityThresholdSeconds)
		}
	}
	return out
}

// KeyOverrides returns the per-process keystroke map.
func (s *Settings) KeyOverrides() map[string]string {
	out := make(map[string]string)
	for proc, ov := range s.ProcessOverrides {
		if ov.KeysToSend != "" {
			out[proc] = ov.KeysToSend
		}
	}
	return out
}

var (
	cacheMu sync.RWMutex
	cached  *Settings

	// dirOverride redirects the state directory in tests.
	dirOverride string
)

// Dir returns the per-user state directory, creating nothing.
func Dir() (string, error) {
	if dirOverride != "" {
		return dirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// SetDir overrides the state directory and clears the cache. Used by the
// --config-dir flag and by tests.
func SetDir(dir string) {
	cacheMu.Lock()
	dirOverride = dir
	cached = nil
	cacheMu.Unlock()
}

// Path returns the config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load returns the settings, reading the file once and caching the result.
// A missing file yields defaults; a parse error yields defaults plus the
// error so the caller can surface it.
func Load() (*Settings, error) {
	cacheMu.RLock()
	if cached != nil {
		defer cacheMu.RUnlock()
		return cached, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached != nil {
		return cached, nil
	}

	s, err := load()
	cached = s
	return s, err
}

// Reload drops the cache and reads the file fresh.
func Reload() (*Settings, error) {
	cacheMu.Lock()
	cached = nil
	cacheMu.Unlock()
	return Load()
}

func load() (*Settings, error) {
	def := Default()

	path, err := Path()
	if err != nil {
		applyEnvOverrides(&def)
		return &def, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(&def)
		return &def, nil
	}

	s := Default()
	if _, err := toml.DecodeFile(path, &s); err != nil {
		applyEnvOverrides(&def)
		return &def, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.ProcessOverrides == nil {
		s.ProcessOverrides = map[string]Override{}
	}
	validate(&s)
	applyEnvOverrides(&s)
	return &s, nil
}

// validate clamps out-of-range values back to defaults, warning about each.
// Startup never fails on a bad value; it runs with something sane instead.
func validate(s *Settings) {
	def := Default()
	clampF := func(name string, v *float64, min float64, fallback float64) {
		if *v < min {
			log.Warn("invalid config value reset to default",
				slog.String("key", name),
				slog.Float64("value", *v),
				slog.Float64("default", fallback))
			*v = fallback
		}
	}
	clampI := func(name string, v *int, min int, fallback int) {
		if *v < min {
			log.Warn("invalid config value reset to default",
				slog.String("key", name),
				slog.Int("value", *v),
				slog.Int("default", fallback))
			*v = fallback
		}
	}

	if len(s.TargetProcesses) == 0 {
		log.Warn("no target processes configured, using defaults")
		s.TargetProcesses = def.TargetProcesses
	}
	if s.KeysToSend == "" {
		log.Warn("empty keys_to_send, using default")
		s.KeysToSend = def.KeysToSend
	}
	clampF("inactivity_threshold_seconds", &s.InactivityThresholdSeconds, 1, def.InactivityThresholdSeconds)
	clampF("polling_interval_seconds", &s.PollingIntervalSeconds, 0.1, def.PollingIntervalSeconds)
	clampI("advanced.max_windows", &s.Advanced.MaxWindows, 1, def.Advanced.MaxWindows)
	clampF("advanced.window_operation_timeout_seconds", &s.Advanced.WindowOperationTimeoutSeconds, 0, def.Advanced.WindowOperationTimeoutSeconds)
	clampI("advanced.retry_attempts", &s.Advanced.RetryAttempts, 0, def.Advanced.RetryAttempts)
	clampF("advanced.retry_delay_seconds", &s.Advanced.RetryDelaySeconds, 0, def.Advanced.RetryDelaySeconds)
	clampI("advanced.hash_sample_size", &s.Advanced.HashSampleSize, 0, def.Advanced.HashSampleSize)
	clampI("advanced.metrics_interval_seconds", &s.Advanced.MetricsIntervalSeconds, 10, def.Advanced.MetricsIntervalSeconds)
	clampF("advanced.inject_rate_per_second", &s.Advanced.InjectRatePerSecond, 0.01, def.Advanced.InjectRatePerSecond)
	clampI("advanced.inject_burst", &s.Advanced.InjectBurst, 1, def.Advanced.InjectBurst)
	switch s.Logs.Level {
	case "debug", "info", "warn", "error":
	default:
		log.Warn("invalid log level, using default", slog.String("level", s.Logs.Level))
		s.Logs.Level = def.Logs.Level
	}
}

// Save writes settings atomically: temp file, fsync, rename. The cache is
// cleared so the next Load reads the new values.
func Save(s *Settings) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# termkeep configuration\n")
	buf.WriteString("# Values outside their valid range fall back to defaults at load time.\n\n")
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if f, err := os.Open(tmp); err == nil {
		f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize config save: %w", err)
	}

	cacheMu.Lock()
	cached = nil
	cacheMu.Unlock()
	return nil
}
