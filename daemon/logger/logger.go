// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

// Package logger provides structured logging for provisiond.
//
// Components log through the package-level functions, which are no-ops
// until Init is called. A "component" field is lifted into the entry's
// Component, and fields named after secrets are masked.
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Backend is the interface for log output backends
type Backend interface {
	Write(entry *Entry) error
	Close() error
}

// Config holds logger configuration
type Config struct {
	Level     string // debug, info, warn, error
	Format    string // text, json
	Component string // default component name
}

// Redacted replaces the value of sensitive fields.
const Redacted = "********"

var sensitiveKeys = map[string]bool{
	"password":   true,
	"psk":        true,
	"passphrase": true,
	"secret":     true,
}

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a string to a LogLevel; unknown values mean info.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type standardLogger struct {
	level     LogLevel
	backends  []Backend
	emitter   *Emitter
	component string
	fields    map[string]interface{}
}

// New creates a logger writing to backends and, if non-nil, emitter.
func New(config Config, backends []Backend, emitter *Emitter) Logger {
	return &standardLogger{
		level:     ParseLevel(config.Level),
		backends:  backends,
		emitter:   emitter,
		component: config.Component,
		fields:    make(map[string]interface{}),
	}
}

func (l *standardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

func (l *standardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

func (l *standardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

func (l *standardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

// With returns a child logger carrying fields on every entry.
func (l *standardLogger) With(fields ...Field) Logger {
	child := &standardLogger{
		level:     l.level,
		backends:  l.backends,
		emitter:   l.emitter,
		component: l.component,
		fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for _, f := range fields {
		child.component = applyField(child.fields, f, child.component)
	}
	return child
}

func (l *standardLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	component := l.component
	for _, f := range fields {
		component = applyField(merged, f, component)
	}

	entry := NewEntry(level.String(), component, msg, merged)
	for _, backend := range l.backends {
		if err := backend.Write(entry); err != nil {
			fmt.Fprintf(os.Stderr, "Logger backend error: %v\n", err)
		}
	}
	if l.emitter != nil {
		l.emitter.Emit(entry)
	}
}

// applyField stores f in fields and returns the resulting component.
func applyField(fields map[string]interface{}, f Field, component string) string {
	if f.Key == "component" {
		if s, ok := f.Value.(string); ok {
			return s
		}
	}
	if sensitiveKeys[strings.ToLower(f.Key)] {
		fields[f.Key] = Redacted
		return component
	}
	fields[f.Key] = f.Value
	return component
}

var (
	mu            sync.RWMutex
	std           Logger
	stdBackends   []Backend
	globalEmitter *Emitter
)

// Init installs the global logger.
func Init(config Config, backends []Backend, emitter *Emitter) {
	mu.Lock()
	defer mu.Unlock()
	globalEmitter = emitter
	stdBackends = backends
	std = New(config, backends, emitter)
}

// Close closes the global logger's backends and disables logging.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	var errs []error
	for _, b := range stdBackends {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	std, stdBackends, globalEmitter = nil, nil, nil
	return errors.Join(errs...)
}

// GetEmitter returns the global emitter for log streaming subscribers.
func GetEmitter() *Emitter {
	mu.RLock()
	defer mu.RUnlock()
	return globalEmitter
}

func global() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	if l := global(); l != nil {
		l.Debug(msg, fields...)
	}
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	if l := global(); l != nil {
		l.Info(msg, fields...)
	}
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	if l := global(); l != nil {
		l.Warn(msg, fields...)
	}
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	if l := global(); l != nil {
		l.Error(msg, fields...)
	}
}
