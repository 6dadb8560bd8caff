// Package logging provides categorized structured logging for arbiter,
// built on zap. Each subsystem logs under its own named logger so output
// can be filtered per category; in production mode only warnings and
// errors are emitted.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names one logging subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup and configuration
	CategoryAirlock   Category = "airlock"   // sanitization and validation
	CategoryEngine    Category = "engine"    // weighted-sum computation
	CategoryFracture  Category = "fracture"  // failure classification
	CategoryStabilize Category = "stabilize" // correction retry loop
	CategoryPipeline  Category = "pipeline"  // end-to-end run orchestration
	CategoryStore     Category = "store"     // evaluation journal
	CategoryLLM       Category = "llm"       // regenerator client calls
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	loggers = map[Category]*zap.Logger{}
)

// Initialize installs the process-wide root logger. When debug is true the
// logger is a development config at debug level; otherwise production config.
// Safe to call more than once; later calls replace the root and drop cached
// category loggers.
func Initialize(debug bool) error {
	var (
		logger *zap.Logger
		err    error
	)
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		logger, err = cfg.Build()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return err
	}

	mu.Lock()
	root = logger
	loggers = map[Category]*zap.Logger{}
	mu.Unlock()
	return nil
}

// SetLogger installs an externally built logger as the root. Used by the CLI,
// which owns zap configuration, and by tests that want an observed core.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	root = logger
	loggers = map[Category]*zap.Logger{}
	mu.Unlock()
}

// Get returns the named logger for a category, creating it on first use.
func Get(category Category) *zap.Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category))
	loggers[category] = l
	return l
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
