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
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/daemon"
)

// mockClient is a mock implementation of ClientInterface for testing.
type mockClient struct {
	sendFunc   func(req daemon.Request) (*daemon.Response, error)
	streamFunc func(filter *daemon.LogFilter, fn func(line []byte) error) error
}

func (m *mockClient) Send(req daemon.Request) (*daemon.Response, error) {
	if m.sendFunc != nil {
		return m.sendFunc(req)
	}
	return &daemon.Response{Success: true, Message: "OK"}, nil
}

func (m *mockClient) StreamLogs(filter *daemon.LogFilter, fn func(line []byte) error) error {
	if m.streamFunc != nil {
		return m.streamFunc(filter, fn)
	}
	return nil
}

func TestRootCmdExists(t *testing.T) {
	assert.NotNil(t, rootCmd, "root command should exist")
	assert.Equal(t, "provisiond", rootCmd.Use)
	assert.Contains(t, rootCmd.Short, "provisiond")
}

func TestRootCmdHasCommands(t *testing.T) {
	expectedCommands := []string{
		"daemon",
		"status",
		"scan",
		"connect",
		"probe",
		"validate",
		"logs",
		"version",
	}

	commandNames := make([]string, 0)
	for _, cmd := range rootCmd.Commands() {
		commandNames = append(commandNames, cmd.Name())
	}

	for _, expected := range expectedCommands {
		assert.Contains(t, commandNames, expected, "command %s should be registered", expected)
	}
}

func TestSetVersion(t *testing.T) {
	origVersion, origBuild := Version, BuildTime
	defer SetVersion(origVersion, origBuild)

	SetVersion("1.2.3", "2025-06-01")
	assert.Equal(t, "1.2.3", rootCmd.Version)

	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), "provisiond v1.2.3")
	assert.Contains(t, buf.String(), "2025-06-01")
}

func TestApplySocketFlag(t *testing.T) {
	t.Setenv("PROVISIOND_SOCKET_PATH", "/var/run/provisiond.sock")
	defer func() { socketPath = "" }()

	socketPath = ""
	require.NoError(t, applySocketFlag(rootCmd, nil))
	assert.Equal(t, "/var/run/provisiond.sock", os.Getenv("PROVISIOND_SOCKET_PATH"))

	socketPath = "/tmp/other.sock"
	require.NoError(t, applySocketFlag(rootCmd, nil))
	assert.Equal(t, "/tmp/other.sock", os.Getenv("PROVISIOND_SOCKET_PATH"))
}
