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

package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DefaultLogPath is where the file backend writes when no path is configured.
const DefaultLogPath = "/var/log/provisiond/provisiond.log"

// WriterBackend writes formatted entries to an io.Writer. It serves the
// foreground (stderr) mode and tests.
type WriterBackend struct {
	w      io.Writer
	format string
	mu     sync.Mutex
}

// NewWriterBackend creates a backend writing to w in format ("json" or "text").
func NewWriterBackend(w io.Writer, format string) *WriterBackend {
	return &WriterBackend{w: w, format: format}
}

// Write writes one entry.
func (b *WriterBackend) Write(entry *Entry) error {
	line, err := entry.Format(b.format)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := io.WriteString(b.w, line); err != nil {
		return fmt.Errorf("failed to write log entry: %w", err)
	}
	return nil
}

// Close is a no-op; the writer belongs to the caller.
func (b *WriterBackend) Close() error {
	return nil
}

// FileBackend appends entries to a log file.
type FileBackend struct {
	*WriterBackend
	file *os.File
}

// NewFileBackend opens path for appending, creating its directory.
func NewFileBackend(path string, format string) (*FileBackend, error) {
	if path == "" {
		path = DefaultLogPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &FileBackend{
		WriterBackend: NewWriterBackend(file, format),
		file:          file,
	}, nil
}

// Close closes the log file.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
