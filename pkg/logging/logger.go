// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for FinTrack components.
//
// The logger is a thin layer over log/slog with three destinations:
//
//   - stderr (or any io.Writer) for interactive use
//   - an optional JSON log file, one per service and day
//   - an optional LogExporter that receives every entry
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Service: "shell"})
//	defer logger.Close()
//	logger.Info("navigation completed", "path", "/dashboard")
//
// # Component Loggers
//
// Components derive a child logger once and keep it:
//
//	log := logger.With("component", "router")
//
// # Security Considerations
//
// Nothing is redacted automatically. Log token metadata, never tokens:
//
//	logger.Info("session restored", "token_present", token != "")
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity. Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages such as
	// "session restored" or "navigation completed".
	LevelInfo

	// LevelWarn is for recoverable problems: a handler failing and falling
	// back to the not-found view, a refresh retry, a dropped navigation.
	LevelWarn

	// LevelError is for failed operations the process survives.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR" or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string ("debug", "info", "warn",
// "error", case-insensitive) to a Level. Unknown values yield LevelInfo
// and a non-nil error.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "debug", "DEBUG", "Debug":
		return LevelDebug, nil
	case "", "info", "INFO", "Info":
		return LevelInfo, nil
	case "warn", "WARN", "Warn", "warning", "WARNING":
		return LevelWarn, nil
	case "error", "ERROR", "Error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures a Logger. The zero value logs everything to stderr in
// text format.
type Config struct {
	// Level sets the minimum log level. The zero value is LevelDebug.
	Level Level

	// LogDir enables JSON file logging into "{Service}_{YYYY-MM-DD}.log".
	// A leading ~ is expanded to the home directory. The directory is
	// created with 0750 permissions.
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches the console handler to JSON. File logs are always JSON.
	JSON bool

	// Quiet disables console output entirely.
	Quiet bool

	// Output replaces stderr as the console destination.
	Output io.Writer

	// Exporter receives a copy of every entry at or above Level.
	Exporter LogExporter
}

// =============================================================================
// Exporter Interface
// =============================================================================

// LogExporter receives log entries in addition to the slog handlers.
//
// Export is called synchronously from the logging goroutine, so
// implementations must be fast and must not log through the same Logger.
// Flush and Close are called by Logger.Close.
type LogExporter interface {
	Export(ctx context.Context, entry LogEntry) error
	Flush(ctx context.Context) error
	Close() error
}

// LogEntry is the exported form of a single log call.
type LogEntry struct {
	Timestamp time.Time
	Level     Level
	Message   string
	Service   string

	// Attrs holds the key-value pairs of the call, including those
	// attached with With.
	Attrs map[string]any
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging with multi-destination output.
//
// # Thread Safety
//
// Logger is safe for concurrent use. Child loggers created with With share
// the parent's file handle and exporter.
type Logger struct {
	slog     *slog.Logger
	config   Config
	file     *os.File
	exporter LogExporter

	// attrs are the key-value pairs accumulated through With; they are
	// forwarded to the exporter.
	attrs []any

	mu *sync.Mutex
}

// New creates a Logger from config.
//
// File logging failures (unwritable directory) are not fatal: the logger
// silently keeps its console destination.
func New(config Config) *Logger {
	var handlers []slog.Handler

	opts := &slog.HandlerOptions{
		Level: config.Level.toSlogLevel(),
	}

	if !config.Quiet {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	logger := &Logger{
		config:   config,
		exporter: config.Exporter,
		mu:       &sync.Mutex{},
	}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			serviceName := config.Service
			if serviceName == "" {
				serviceName = "fintrack"
			}
			filename := fmt.Sprintf("%s_%s.log", serviceName, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// Quiet without a file still needs a handler for slog.
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level stderr logger for the "fintrack" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "fintrack"})
}

// Nop returns a logger that discards everything. Useful as a fallback
// when a component is constructed without a logger.
func Nop() *Logger {
	return New(Config{Quiet: true})
}

// Debug logs at Debug level.
func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, msg, args...) }

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) { l.log(LevelInfo, msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.log(LevelWarn, msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, msg, args...) }

// With returns a child logger that adds args to every entry.
// The parent is not modified.
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{
		slog:     l.slog.With(args...),
		config:   l.config,
		file:     l.file,
		exporter: l.exporter,
		attrs:    attrs,
		mu:       l.mu,
	}
}

// Slog returns the underlying slog.Logger, e.g. for libraries that accept
// one directly.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close flushes and closes the exporter, then syncs and closes the log
// file. It returns the first error encountered.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error

	if l.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.exporter.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush exporter: %w", err))
		}
		if err := l.exporter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close exporter: %w", err))
		}
		l.exporter = nil
	}

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("sync log file: %w", err))
		}
		if err := l.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
		l.file = nil
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (l *Logger) log(level Level, msg string, args ...any) {
	switch level {
	case LevelDebug:
		l.slog.Debug(msg, args...)
	case LevelInfo:
		l.slog.Info(msg, args...)
	case LevelWarn:
		l.slog.Warn(msg, args...)
	case LevelError:
		l.slog.Error(msg, args...)
	}

	if l.exporter != nil && level >= l.config.Level {
		all := make([]any, 0, len(l.attrs)+len(args))
		all = append(all, l.attrs...)
		all = append(all, args...)
		entry := LogEntry{
			Timestamp: time.Now(),
			Level:     level,
			Message:   msg,
			Service:   l.config.Service,
			Attrs:     argsToMap(all),
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = l.exporter.Export(ctx, entry)
		cancel()
	}
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans records out to several handlers (console + file).
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// =============================================================================
// Helper Functions
// =============================================================================

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ExpandPath is the exported form of the ~ expansion used for LogDir, so
// other components (session storage) resolve paths the same way.
func ExpandPath(path string) string {
	return expandPath(path)
}

// argsToMap converts slog-style key-value args to a map. A trailing key
// without a value is dropped.
func argsToMap(args []any) map[string]any {
	result := make(map[string]any, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			result[key] = args[i+1]
		}
	}
	return result
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// BufferedExporter collects entries in memory. Tests use it to assert that
// a component logged what it should:
//
//	exp := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Quiet: true, Exporter: exp})
//	...
//	require.True(t, exp.Contains(logging.LevelWarn, "route handler failed"))
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 32)}
}

// Export appends the entry.
func (e *BufferedExporter) Export(_ context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

// Flush is a no-op.
func (e *BufferedExporter) Flush(context.Context) error { return nil }

// Close is a no-op.
func (e *BufferedExporter) Close() error { return nil }

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]LogEntry, len(e.entries))
	copy(result, e.entries)
	return result
}

// Contains reports whether an entry with the given level and message was
// collected.
func (e *BufferedExporter) Contains(level Level, msg string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.entries {
		if entry.Level == level && entry.Message == msg {
			return true
		}
	}
	return false
}

var _ LogExporter = (*BufferedExporter)(nil)
