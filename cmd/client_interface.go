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

package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/we-are-mono/provisiond/client"
	"github.com/we-are-mono/provisiond/daemon"
)

// ClientInterface is what the CLI commands need from the daemon socket.
type ClientInterface interface {
	Send(req daemon.Request) (*daemon.Response, error)
	StreamLogs(filter *daemon.LogFilter, fn func(line []byte) error) error
}

// realClient forwards to the client package.
type realClient struct{}

func (r *realClient) Send(req daemon.Request) (*daemon.Response, error) {
	return client.Send(req)
}

func (r *realClient) StreamLogs(filter *daemon.LogFilter, fn func(line []byte) error) error {
	return client.StreamLogs(filter, fn)
}

// defaultClient is used by the commands; tests swap in a mock.
var defaultClient ClientInterface = &realClient{}

// sendRequest sends req and turns a failed Response into an error.
func sendRequest(c ClientInterface, req daemon.Request) (*daemon.Response, error) {
	resp, err := c.Send(req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Code != 0 {
			return nil, fmt.Errorf("%s (code %d)", resp.Error, resp.Code)
		}
		return nil, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}

// decodeData re-decodes the loosely typed Response.Data into v.
func decodeData(resp *daemon.Response, v interface{}) error {
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return fmt.Errorf("failed to read response data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}
