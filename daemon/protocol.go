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

// Package daemon implements the provisioning state machine, the
// connectivity monitor and the Unix socket server of provisiond.
package daemon

import "github.com/we-are-mono/provisiond/types"

// Commands understood by the daemon.
const (
	CommandStatus        = "status"
	CommandScan          = "scan"
	CommandConnect       = "connect"
	CommandProbe         = "probe"
	CommandLogsSubscribe = "logs-subscribe"
)

// LogFilter defines filtering criteria for log streaming
type LogFilter struct {
	Level     string `json:"level,omitempty"`     // Filter by log level (debug, info, warn, error)
	Component string `json:"component,omitempty"` // Filter by component name
}

// Request represents a command sent to the daemon
type Request struct {
	Command   string     `json:"command"` // status, scan, connect, probe, logs-subscribe
	SSID      string     `json:"ssid,omitempty"`
	Password  string     `json:"password,omitempty"`
	Verbose   bool       `json:"verbose,omitempty"`
	History   bool       `json:"history,omitempty"` // probe: include recorded samples
	LogFilter *LogFilter `json:"log_filter,omitempty"`
}

// Response represents the daemon's response
type Response struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"` // HTTP-style status on failure
	Success bool        `json:"success"`
}

// ProbeReport is the data of a probe response.
type ProbeReport struct {
	Result  types.ProbeResult   `json:"result"`
	History []types.ProbeSample `json:"history,omitempty"`
}
