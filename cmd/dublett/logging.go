package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"dublett/internal/config"
)

const (
	logLevelEnvKey  = "DUBLETT_LOG_LEVEL"
	logFormatEnvKey = "DUBLETT_LOG_FORMAT"
)

type levelSource int

const (
	sourceDefault levelSource = iota
	sourceConfig
	sourceEnv
	sourceFlag
)

// configureLoggerForCLI installs the default logger using the usual
// precedence: flag over environment over config file. A bad level from the
// flag is an error; a bad level from anywhere else degrades to the default
// with a warning the caller should print.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	envLevel := os.Getenv(logLevelEnvKey)
	rawLevel, source := pickLogLevel(flagLevel, envLevel, configLevel)

	if err := installDefaultLogger(rawLevel); err == nil {
		return "", nil
	}
	if source == sourceFlag {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}

	_ = installDefaultLogger("")
	switch source {
	case sourceEnv:
		return fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, envLevel, config.DefaultLogLevel), nil
	case sourceConfig:
		return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel), nil
	}
	return "", nil
}

func pickLogLevel(flagLevel, envLevel, configLevel string) (string, levelSource) {
	switch {
	case strings.TrimSpace(flagLevel) != "":
		return flagLevel, sourceFlag
	case strings.TrimSpace(envLevel) != "":
		return envLevel, sourceEnv
	case strings.TrimSpace(configLevel) != "":
		return configLevel, sourceConfig
	}
	return "", sourceDefault
}

func installDefaultLogger(rawLevel string) error {
	level, err := parseLogLevel(rawLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(level))
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger writes to stderr so command output on stdout stays pipeable.
// DUBLETT_LOG_FORMAT=json switches to structured JSON lines.
func newLogger(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(logFormatEnvKey)), "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
