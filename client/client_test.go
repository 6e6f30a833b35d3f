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

package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/daemon"
)

func TestGetSocketPath(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected string
	}{
		{name: "default path when env not set", envValue: "", expected: "/var/run/provisiond.sock"},
		{name: "custom path from env", envValue: "/tmp/custom.sock", expected: "/tmp/custom.sock"},
		{name: "relative path from env", envValue: "./provisiond.sock", expected: "./provisiond.sock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PROVISIOND_SOCKET_PATH", tt.envValue)
			assert.Equal(t, tt.expected, GetSocketPath())
		})
	}
}

func TestSend_Success(t *testing.T) {
	sockPath := useTempSocket(t)
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		writeJSON(c, daemon.Response{
			Success: true,
			Message: "OK",
			Data:    map[string]interface{}{"mode": "setup"},
		})
	})

	resp, err := Send(daemon.Request{Command: daemon.CommandStatus})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "OK", resp.Message)

	dataMap, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "Data should be a map")
	assert.Equal(t, "setup", dataMap["mode"])
}

func TestSend_ConnectionFailure(t *testing.T) {
	useTempSocket(t)

	resp, err := Send(daemon.Request{Command: daemon.CommandStatus})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "failed to connect to daemon")
}

func TestSend_ReadFailure(t *testing.T) {
	sockPath := useTempSocket(t)
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {})

	resp, err := Send(daemon.Request{Command: daemon.CommandStatus})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "failed to read response")
}

func TestSend_InvalidJSONResponse(t *testing.T) {
	sockPath := useTempSocket(t)
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		c.Write([]byte("invalid json\n"))
	})

	resp, err := Send(daemon.Request{Command: daemon.CommandStatus})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "failed to parse response")
}

func TestSend_ConnectPayload(t *testing.T) {
	sockPath := useTempSocket(t)

	var mu sync.Mutex
	var received daemon.Request
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		mu.Lock()
		received = req
		mu.Unlock()
		writeJSON(c, daemon.Response{Success: false, Error: "connect failed", Code: 500})
	})

	resp, err := Send(daemon.Request{Command: daemon.CommandConnect, SSID: "Home", Password: "secret"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, 500, resp.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Home", received.SSID)
	assert.Equal(t, "secret", received.Password)
}

func TestSend_ConcurrentRequests(t *testing.T) {
	sockPath := useTempSocket(t)

	var mu sync.Mutex
	count := 0
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		writeJSON(c, daemon.Response{Success: true})
	})

	const numRequests = 10
	var wg sync.WaitGroup
	errs := make(chan error, numRequests)
	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Send(daemon.Request{Command: daemon.CommandStatus}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent request failed: %v", err)
	}
	mu.Lock()
	assert.Equal(t, numRequests, count)
	mu.Unlock()
}

func TestStreamLogs(t *testing.T) {
	sockPath := useTempSocket(t)

	var mu sync.Mutex
	var filter *daemon.LogFilter
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		mu.Lock()
		filter = req.LogFilter
		mu.Unlock()
		c.Write([]byte(`{"timestamp":"2025-01-01T00:00:00Z","level":"info","component":"monitor","message":"probe"}` + "\n"))
		c.Write([]byte(`{"timestamp":"2025-01-01T00:00:03Z","level":"warn","component":"monitor","message":"closed"}` + "\n"))
	})

	var lines []string
	err := StreamLogs(&daemon.LogFilter{Level: "info", Component: "monitor"}, func(line []byte) error {
		lines = append(lines, strings.TrimSpace(string(line)))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"closed"`)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, filter)
	assert.Equal(t, "monitor", filter.Component)
}

func TestStreamLogs_Refused(t *testing.T) {
	sockPath := useTempSocket(t)
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		writeJSON(c, daemon.Response{Success: false, Error: "log streaming is not available", Code: 503})
	})

	called := false
	err := StreamLogs(nil, func(line []byte) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log streaming is not available")
	assert.False(t, called)
}

func TestStreamLogs_CallbackErrorStops(t *testing.T) {
	sockPath := useTempSocket(t)
	startMockServer(t, sockPath, func(c net.Conn, req daemon.Request) {
		for i := 0; i < 5; i++ {
			fmt.Fprintf(c, `{"level":"info","message":"m%d"}`+"\n", i)
		}
	})

	stop := errors.New("stop")
	calls := 0
	err := StreamLogs(nil, func(line []byte) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// Helper functions

func useTempSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	sockPath := filepath.Join(dir, "s.sock")
	t.Setenv("PROVISIOND_SOCKET_PATH", sockPath)
	return sockPath
}

func writeJSON(c net.Conn, resp daemon.Response) {
	data, _ := json.Marshal(resp)
	c.Write(append(data, '\n'))
}

// startMockServer reads one request per connection, runs handler and
// closes the connection.
func startMockServer(t *testing.T, sockPath string, handler func(net.Conn, daemon.Request)) {
	t.Helper()

	listener, err := net.Listen("unix", sockPath)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func(c net.Conn) {
				defer wg.Done()
				defer c.Close()

				reqData, err := bufio.NewReader(c).ReadBytes('\n')
				if err != nil {
					return
				}
				var req daemon.Request
				if err := json.Unmarshal(reqData, &req); err != nil {
					return
				}
				handler(c, req)
			}(conn)
		}
	}()

	t.Cleanup(func() {
		listener.Close()
		wg.Wait()
	})
}
