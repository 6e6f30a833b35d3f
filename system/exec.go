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
	"context"
	"time"
)

// executor runs external tools with a per-command deadline.
type executor struct {
	runner  CommandRunner
	timeout time.Duration
}

func (e executor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// run executes name with args. A non-zero exit becomes a *CommandError; the
// output is returned either way so callers can inspect nmcli/iw messages.
func (e executor) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, err := e.runner.Run(ctx, name, args...)
	if err != nil {
		return out, commandError(name, args, out, err)
	}
	return out, nil
}

func (e executor) runInput(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, err := e.runner.RunInput(ctx, input, name, args...)
	if err != nil {
		return out, commandError(name, args, out, err)
	}
	return out, nil
}
