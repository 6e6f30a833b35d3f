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

package system

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChannelRejected is returned when NetworkManager refuses the
	// requested band or channel for the access point.
	ErrChannelRejected = errors.New("channel rejected by NetworkManager")

	// ErrNotActive is returned when a connection profile was brought up
	// but is not bound to the expected device afterwards.
	ErrNotActive = errors.New("connection not active on device")

	// ErrNotAccessPoint is returned in strict mode when the AP interface
	// does not report an access point type.
	ErrNotAccessPoint = errors.New("interface is not in AP mode")
)

// Section is one titled block of diagnostic output.
type Section struct {
	Title  string `json:"title"`
	Output string `json:"output"`
}

// DiagnosticError carries the failing operation together with snapshots of
// system state taken at the moment of failure.
type DiagnosticError struct {
	Op       string
	Err      error
	Sections []Section
}

func (e *DiagnosticError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v", e.Op, e.Err)
	for _, s := range e.Sections {
		fmt.Fprintf(&b, "\n--- %s ---\n%s", s.Title, strings.TrimRight(s.Output, "\n"))
	}
	return b.String()
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}

// CommandError is a failed external command with its captured output.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// commandError builds a CommandError for name/args.
func commandError(name string, args []string, output []byte, err error) error {
	return &CommandError{
		Command: strings.Join(append([]string{name}, args...), " "),
		Output:  string(output),
		Err:     err,
	}
}
