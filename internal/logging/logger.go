// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error, disabled.
	Level string
	// Format is json or console.
	Format string
	Caller bool
	// Timestamp adds a "time" field to every line.
	Timestamp bool

	// RejectBurst is how many rejected-message warnings are written per
	// RejectPeriod; the rest are dropped. Zero disables sampling.
	RejectBurst  int
	RejectPeriod time.Duration

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:        "info",
		Format:       "json",
		Timestamp:    true,
		RejectBurst:  20,
		RejectPeriod: 10 * time.Second,
		Output:       os.Stderr,
	}
}

// loggers is swapped as a whole on Init so readers never see a base logger
// paired with a stale rejection sampler.
type loggers struct {
	base    zerolog.Logger
	rejects zerolog.Logger
}

var (
	mu  sync.RWMutex
	cur loggers
)

//nolint:gochecknoinits // packages log during init of the supervisor tree, before main calls Init
func init() {
	cur = build(DefaultConfig())
}

// Init reconfigures the global loggers. Safe to call more than once.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	cur = l
	mu.Unlock()
}

func build(cfg Config) loggers {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"

	out := cfg.Output
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	zctx := zerolog.New(out).With().Str("app", "hivekeeper")
	if cfg.Timestamp {
		zctx = zctx.Timestamp()
	}
	if cfg.Caller {
		zctx = zctx.Caller()
	}
	base := zctx.Logger()

	rejects := base
	if cfg.RejectBurst > 0 && cfg.RejectPeriod > 0 {
		rejects = base.Sample(&zerolog.BurstSampler{
			Burst:  uint32(cfg.RejectBurst),
			Period: cfg.RejectPeriod,
		})
	}
	return loggers{base: base, rejects: rejects}
}

// parseLevel maps a configured level to zerolog. "warning" is accepted as
// an alias; empty or unknown values mean info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}
	if level == "" {
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}

// Logger returns the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return cur.base
}

func rejectLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return cur.rejects
}

// SetLogger replaces both global loggers with l. Tests use it to capture output.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	cur = loggers{base: l, rejects: l}
}

// Debug starts a debug-level message on the global logger.
func Debug() *zerolog.Event {
	l := Logger()
	return l.Debug()
}

// Info starts an info-level message.
func Info() *zerolog.Event {
	l := Logger()
	return l.Info()
}

// Warn starts a warn-level message.
func Warn() *zerolog.Event {
	l := Logger()
	return l.Warn()
}

// Error starts an error-level message.
func Error() *zerolog.Event {
	l := Logger()
	return l.Error()
}

// Fatal starts a fatal-level message; the process exits after it is written.
func Fatal() *zerolog.Event {
	l := Logger()
	return l.Fatal()
}

// NewTestLogger returns a logger writing JSON to w without sampling.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
