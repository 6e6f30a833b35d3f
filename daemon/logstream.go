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

package daemon

import (
	"net"
	"strings"
	"sync"
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
)

// streamWriteTimeout bounds a write to a slow log client.
const streamWriteTimeout = time.Second

// SocketLogSubscriber streams matching log entries to a client connection
// as JSON lines.
type SocketLogSubscriber struct {
	conn   net.Conn
	filter LogFilter
	mu     sync.Mutex
	closed bool
}

// NewSocketLogSubscriber creates a subscriber writing to conn.
func NewSocketLogSubscriber(conn net.Conn, filter *LogFilter) *SocketLogSubscriber {
	s := &SocketLogSubscriber{conn: conn}
	if filter != nil {
		s.filter = *filter
	}
	return s
}

// Matches reports whether entry passes the filter. The level filter is a
// minimum level.
func (s *SocketLogSubscriber) Matches(entry *logger.Entry) bool {
	if s.filter.Level != "" && logger.ParseLevel(entry.Level) < logger.ParseLevel(s.filter.Level) {
		return false
	}
	if s.filter.Component != "" && !strings.EqualFold(entry.Component, s.filter.Component) {
		return false
	}
	return true
}

// OnLogEvent writes entry if it matches. A failed write closes the
// subscriber.
func (s *SocketLogSubscriber) OnLogEvent(entry *logger.Entry) error {
	if !s.Matches(entry) {
		return nil
	}
	data, err := entry.ToJSON()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	s.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if _, err := s.conn.Write(append(data, '\n')); err != nil {
		s.closed = true
		return err
	}
	return nil
}

// Close stops further writes.
func (s *SocketLogSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
