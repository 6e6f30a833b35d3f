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

package state

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Marker is the file that records that the device reached the internet at
// least once. Its content is a single "online_at=<unix seconds>" line.
type Marker struct {
	path      string
	overwrite bool

	mu      sync.Mutex
	written bool
}

// NewMarker returns a marker at path. When overwrite is false an existing
// marker file is left untouched by Write.
func NewMarker(path string, overwrite bool) *Marker {
	return &Marker{path: path, overwrite: overwrite}
}

// Path returns the marker file location.
func (m *Marker) Path() string {
	return m.path
}

// Exists reports whether the marker file is present.
func (m *Marker) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Write records the online transition at t. It writes at most once per
// Marker; later calls return false without touching the file.
func (m *Marker) Write(t time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.written {
		return false, nil
	}
	if !m.overwrite && m.Exists() {
		m.written = true
		return false, nil
	}

	data := fmt.Sprintf("online_at=%d\n", t.Unix())
	if err := writeFileAtomic(m.path, []byte(data), 0644); err != nil {
		return false, fmt.Errorf("failed to write provisioned marker: %w", err)
	}

	m.written = true
	return true, nil
}

// OnlineAt parses the timestamp stored in the marker file.
func (m *Marker) OnlineAt() (time.Time, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return time.Time{}, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "online_at" {
			continue
		}
		secs, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid online_at value %q: %w", value, err)
		}
		return time.Unix(secs, 0), nil
	}

	return time.Time{}, errors.New("marker has no online_at entry")
}
