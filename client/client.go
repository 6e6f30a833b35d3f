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

// Package client talks to the provisiond control socket.
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/we-are-mono/provisiond/daemon"
)

// DefaultSocketPath is used when PROVISIOND_SOCKET_PATH is unset.
const DefaultSocketPath = "/var/run/provisiond.sock"

// requestTimeout covers a whole Send round trip. Connect can keep the
// daemon busy for a while, so it is generous.
const requestTimeout = 2 * time.Minute

// GetSocketPath returns the socket path, preferring PROVISIOND_SOCKET_PATH.
func GetSocketPath() string {
	if path := os.Getenv("PROVISIOND_SOCKET_PATH"); path != "" {
		return path
	}
	return DefaultSocketPath
}

func dial(req daemon.Request) (net.Conn, error) {
	conn, err := net.Dial("unix", GetSocketPath())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon (is it running?): %w", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err = conn.Write(append(data, '\n')); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return conn, nil
}

// Send issues one request and waits for its response.
func Send(req daemon.Request) (*daemon.Response, error) {
	conn, err := dial(req)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	respData, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp daemon.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &resp, nil
}

// StreamLogs subscribes to the daemon's log stream and hands every entry
// line to fn until the daemon closes the stream or fn returns an error.
func StreamLogs(filter *daemon.LogFilter, fn func(line []byte) error) error {
	conn, err := dial(daemon.Request{Command: daemon.CommandLogsSubscribe, LogFilter: filter})
	if err != nil {
		return err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			// A refusal arrives as a regular failed Response.
			var refusal struct {
				Success *bool  `json:"success"`
				Error   string `json:"error"`
			}
			if json.Unmarshal(line, &refusal) == nil && refusal.Success != nil && !*refusal.Success {
				return fmt.Errorf("daemon refused log stream: %s", refusal.Error)
			}
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read log stream: %w", err)
		}
	}
}
