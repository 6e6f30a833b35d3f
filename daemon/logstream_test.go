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
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/daemon/logger"
)

func TestSocketLogSubscriberMatches(t *testing.T) {
	tests := []struct {
		name   string
		filter *LogFilter
		entry  *logger.Entry
		want   bool
	}{
		{"no filter", nil, &logger.Entry{Level: "debug"}, true},
		{"level at minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "warn"}, true},
		{"level above minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "error"}, true},
		{"level below minimum", &LogFilter{Level: "warn"}, &logger.Entry{Level: "info"}, false},
		{"component match", &LogFilter{Component: "Monitor"}, &logger.Entry{Level: "info", Component: "monitor"}, true},
		{"component mismatch", &LogFilter{Component: "monitor"}, &logger.Entry{Level: "info", Component: "server"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSocketLogSubscriber(nil, tt.filter)
			assert.Equal(t, tt.want, s.Matches(tt.entry))
		})
	}
}

func TestSocketLogSubscriberWrites(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := NewSocketLogSubscriber(server, nil)
	lines := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(client).ReadString('\n')
		lines <- line
	}()

	require.NoError(t, s.OnLogEvent(logger.NewEntry("info", "monitor", "probe done", nil)))

	var entry logger.Entry
	require.NoError(t, json.Unmarshal([]byte(<-lines), &entry))
	assert.Equal(t, "probe done", entry.Message)
}

func TestSocketLogSubscriberClosesOnWriteError(t *testing.T) {
	server, client := net.Pipe()
	client.Close()

	s := NewSocketLogSubscriber(server, nil)
	assert.Error(t, s.OnLogEvent(logger.NewEntry("info", "", "first", nil)))
	assert.NoError(t, s.OnLogEvent(logger.NewEntry("info", "", "second", nil)), "closed subscriber drops entries")

	s.Close()
	server.Close()
}
