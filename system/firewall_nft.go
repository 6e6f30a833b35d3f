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
	"errors"
	"fmt"
	"strings"
	"time"
)

// NftFirewall loads the setup tables with the nft binary.
type NftFirewall struct {
	exec executor
}

// NewNftFirewall creates the nft(8) based backend.
func NewNftFirewall(runner CommandRunner, timeout time.Duration) *NftFirewall {
	return &NftFirewall{exec: executor{runner: runner, timeout: timeout}}
}

func (f *NftFirewall) Name() string { return "nft" }

// Script returns the nft input used by Apply: each table is declared,
// deleted and declared again so one transaction replaces it.
func (f *NftFirewall) Script(r SetupRules) string {
	var b strings.Builder
	fmt.Fprintf(&b, "table ip %s\ndelete table ip %s\n", NATTableName, NATTableName)
	fmt.Fprintf(&b, "table inet %s\ndelete table inet %s\n", FilterTableName, FilterTableName)
	b.WriteString(RenderRuleset(r))
	return b.String()
}

func (f *NftFirewall) Apply(ctx context.Context, r SetupRules) error {
	if _, err := f.exec.runInput(ctx, []byte(f.Script(r)), "nft", "-f", "-"); err != nil {
		return err
	}
	return nil
}

func (f *NftFirewall) Remove(ctx context.Context) error {
	var errs []error
	for _, t := range [][2]string{{"ip", NATTableName}, {"inet", FilterTableName}} {
		out, err := f.exec.run(ctx, "nft", "delete", "table", t[0], t[1])
		if err != nil && !isMissingTable(out) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func isMissingTable(out []byte) bool {
	lower := strings.ToLower(string(out))
	return strings.Contains(lower, "no such file or directory") || strings.Contains(lower, "does not exist")
}
