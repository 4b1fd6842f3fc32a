// Package logging provides the process-wide structured logger, scaled down
// from the pack's zap-based logger package: a console core plus an optional
// file core, with a dynamically adjustable level. It drops the TUI-oriented
// stderr-swap machinery that package has no use for here.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's verbosity and optional file sink.
type Config struct {
	Level    string
	FilePath string
}

var (
	mu          sync.Mutex
	sugar       *zap.SugaredLogger
	atomicLevel zap.AtomicLevel
	logFile     *os.File
)

// Init builds the global logger from cfg and returns it along with a cleanup
// function the caller must defer.
func Init(cfg Config) (*zap.SugaredLogger, func(), error) {
	mu.Lock()
	defer mu.Unlock()

	level := parseLevel(cfg.Level)
	atomicLevel = zap.NewAtomicLevelAt(level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(os.Stderr),
		atomicLevel,
	)
	cores := []zapcore.Core{consoleCore}

	if path := strings.TrimSpace(cfg.FilePath); path != "" {
		core, file, err := fileCore(encoderCfg, path)
		if err != nil {
			return nil, nil, err
		}
		logFile = file
		cores = append(cores, core)
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	sugar = base.Sugar()
	zap.ReplaceGlobals(base)

	cleanup := func() {
		_ = base.Sync()
		mu.Lock()
		defer mu.Unlock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
	}
	return sugar, cleanup, nil
}

func fileCore(encoderCfg zapcore.EncoderConfig, path string) (zapcore.Core, *os.File, error) {
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: creating log directory %q: %w", dir, err)
		}
	}
	file, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: opening log file %q: %w", clean, err)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), atomicLevel)
	return core, file, nil
}

// SetLevel dynamically changes the running logger's verbosity.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	if (atomicLevel == zap.AtomicLevel{}) {
		return
	}
	atomicLevel.SetLevel(parseLevel(level))
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
