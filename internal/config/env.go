package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Environment variables that override the config file. Useful for one-off
// runs and service wrappers that cannot edit the TOML.
const (
	EnvLogLevel            = "TERMKEEP_LOG_LEVEL"
	EnvPollingInterval     = "TERMKEEP_POLLING_INTERVAL"
	EnvInactivityThreshold = "TERMKEEP_INACTIVITY_THRESHOLD"
)

func applyEnvOverrides(s *Settings) {
	if v := os.Getenv(EnvLogLevel); v != "" {
		switch v {
		case "debug", "info", "warn", "error":
			s.Logs.Level = v
		default:
			log.Warn("ignoring invalid log level from environment",
				slog.String("var", EnvLogLevel), slog.String("value", v))
		}
	}
	if v := os.Getenv(EnvPollingInterval); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0.1 {
			s.PollingIntervalSeconds = f
		} else {
			log.Warn("ignoring invalid polling interval from environment",
				slog.String("var", EnvPollingInterval), slog.String("value", v))
		}
	}
	if v := os.Getenv(EnvInactivityThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 1 {
			s.InactivityThresholdSeconds = f
		} else {
			log.Warn("ignoring invalid inactivity threshold from environment",
				slog.String("var", EnvInactivityThreshold), slog.String("value", v))
		}
	}
}
