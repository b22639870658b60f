package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates the daemon logger: JSON to logPath and console to stderr.
// Profile name and PID are included as initial fields.
func New(logPath, profileName, level string) (*zap.Logger, error) {
	lvl, file, err := open(logPath, level)
	if err != nil {
		return nil, err
	}
	encoderCfg := encoderConfig()
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), lvl),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), lvl),
	)
	return zap.New(core, fields(profileName, "vibesd")), nil
}

// NewClient creates a file-only logger for processes that own the terminal.
func NewClient(logPath, profileName, component, level string) (*zap.Logger, error) {
	lvl, file, err := open(logPath, level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(file), lvl)
	return zap.New(core, fields(profileName, component)), nil
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

func open(logPath, level string) (zapcore.Level, *os.File, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return lvl, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return lvl, nil, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return lvl, nil, err
	}
	return lvl, file, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func fields(profileName, component string) zap.Option {
	return zap.Fields(
		zap.String("profile", profileName),
		zap.String("component", component),
		zap.Int("pid", os.Getpid()),
	)
}
