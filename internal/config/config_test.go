package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetDir(dir)
	t.Cleanup(func() { SetDir("") })
	return dir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600))
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	useTempDir(t)
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"cmd.exe", "powershell.exe", "WindowsTerminal.exe"}, s.TargetProcesses)
	assert.Equal(t, 30*time.Second, s.InactivityThreshold())
	assert.Equal(t, 5*time.Second, s.PollingInterval())
	assert.Equal(t, "continue{ENTER}", s.KeysToSend)
	assert.Equal(t, 50, s.Advanced.MaxWindows)
}

func TestLoadReadsAndCaches(t *testing.T) {
	dir := useTempDir(t)
	writeConfig(t, dir, `
target_processes = ["wezterm.exe"]
inactivity_threshold_seconds = 60.0
keys_to_send = "y{ENTER}"

[process_overrides."powershell.exe"]
inactivity_threshold_seconds = 10.0
keys_to_send = "r{ENTER}"
`)
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"wezterm.exe"}, s.TargetProcesses)
	assert.Equal(t, time.Minute, s.InactivityThreshold())
	assert.Equal(t, map[string]time.Duration{"powershell.exe": 10 * time.Second},
		s.ThresholdOverrides())
	assert.Equal(t, map[string]string{"powershell.exe": "r{ENTER}"}, s.KeyOverrides())

	// Cached: editing the file without Reload changes nothing.
	writeConfig(t, dir, `target_processes = ["other.exe"]`)
	s2, err := Load()
	require.NoError(t, err)
	assert.Same(t, s, s2)

	s3, err := Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"other.exe"}, s3.TargetProcesses)
}

func TestValidationClampsToDefaults(t *testing.T) {
	dir := useTempDir(t)
	writeConfig(t, dir, `
inactivity_threshold_seconds = -5.0
polling_interval_seconds = 0.0
keys_to_send = ""

[advanced]
max_windows = 0
retry_attempts = -1

[logs]
level = "verbose"
`)
	s, err := Load()
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, def.InactivityThresholdSeconds, s.InactivityThresholdSeconds)
	assert.Equal(t, def.PollingIntervalSeconds, s.PollingIntervalSeconds)
	assert.Equal(t, def.KeysToSend, s.KeysToSend)
	assert.Equal(t, def.Advanced.MaxWindows, s.Advanced.MaxWindows)
	assert.Equal(t, def.Advanced.RetryAttempts, s.Advanced.RetryAttempts)
	assert.Equal(t, "info", s.Logs.Level)
}

func TestParseErrorFallsBackToDefaults(t *testing.T) {
	dir := useTempDir(t)
	writeConfig(t, dir, "this is not toml {{{")
	s, err := Load()
	require.Error(t, err)
	require.NotNil(t, s)
	assert.Equal(t, Default().KeysToSend, s.KeysToSend)
}

func TestEnvOverrides(t *testing.T) {
	useTempDir(t)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvPollingInterval, "2.5")
	t.Setenv(EnvInactivityThreshold, "120")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", s.Logs.Level)
	assert.Equal(t, 2500*time.Millisecond, s.PollingInterval())
	assert.Equal(t, 2*time.Minute, s.InactivityThreshold())
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	useTempDir(t)
	t.Setenv(EnvLogLevel, "loud")
	t.Setenv(EnvPollingInterval, "nope")
	t.Setenv(EnvInactivityThreshold, "0")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", s.Logs.Level)
	assert.Equal(t, 5*time.Second, s.PollingInterval())
	assert.Equal(t, 30*time.Second, s.InactivityThreshold())
}

func TestSaveRoundTrips(t *testing.T) {
	dir := useTempDir(t)
	s := Default()
	s.InactivityThresholdSeconds = 45
	s.ProcessOverrides["cmd.exe"] = Override{KeysToSend: "go{ENTER}"}
	require.NoError(t, Save(&s))

	// No temp file left behind.
	_, err := os.Stat(filepath.Join(dir, FileName+".tmp"))
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, loaded.InactivityThreshold())
	assert.Equal(t, "go{ENTER}", loaded.KeyOverrides()["cmd.exe"])
}

func TestWatcherFiresOnChange(t *testing.T) {
	dir := useTempDir(t)
	writeConfig(t, dir, `inactivity_threshold_seconds = 30.0`)
	_, err := Load()
	require.NoError(t, err)

	reloaded := make(chan *Settings, 1)
	w, err := Watch(func(s *Settings) {
		select {
		case reloaded <- s:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()

	writeConfig(t, dir, `inactivity_threshold_seconds = 90.0`)

	select {
	case s := <-reloaded:
		assert.Equal(t, 90*time.Second, s.InactivityThreshold())
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not fire")
	}
}
