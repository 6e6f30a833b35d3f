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
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"
)

// Diagnostics snapshots the state an operator needs to debug a failed
// access point bring-up.
type Diagnostics struct {
	nm      *NMClient
	radio   Radio
	netlink NetlinkClient
	apIface string
}

// NewDiagnostics creates a diagnostics collector for the AP interface.
func NewDiagnostics(nm *NMClient, radio Radio, nl NetlinkClient, apIface string) *Diagnostics {
	return &Diagnostics{nm: nm, radio: radio, netlink: nl, apIface: apIface}
}

// Radio returns the wireless interface listing only.
func (d *Diagnostics) Radio(ctx context.Context) []Section {
	if d == nil {
		return nil
	}
	return []Section{d.radioSection(ctx)}
}

// Full returns device status, active connections, the wireless interface
// listing and the AP interface's IPv4 addresses.
func (d *Diagnostics) Full(ctx context.Context) []Section {
	if d == nil {
		return nil
	}

	sections := make([]Section, 0, 4)

	table, err := d.nm.DeviceStatusTable(ctx)
	sections = append(sections, Section{Title: "device status", Output: outputOrError(table, err)})

	_, active, err := d.nm.ActiveConnections(ctx)
	sections = append(sections, Section{Title: "active connections", Output: outputOrError(active, err)})

	sections = append(sections, d.radioSection(ctx))
	sections = append(sections, Section{
		Title:  fmt.Sprintf("addresses on %s", d.apIface),
		Output: d.addressListing(),
	})

	return sections
}

func (d *Diagnostics) radioSection(ctx context.Context) Section {
	listing, err := d.radio.Listing(ctx)
	return Section{Title: "wireless interfaces", Output: outputOrError(listing, err)}
}

func (d *Diagnostics) addressListing() string {
	link, err := d.netlink.LinkByName(d.apIface)
	if err != nil {
		return fmt.Sprintf("unavailable: %v", err)
	}

	addrs, err := d.netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Sprintf("unavailable: %v", err)
	}
	if len(addrs) == 0 {
		return "(none)"
	}

	lines := make([]string, 0, len(addrs))
	for _, a := range addrs {
		lines = append(lines, "inet "+a.IPNet.String())
	}
	return strings.Join(lines, "\n")
}

func outputOrError(out string, err error) string {
	if err != nil {
		if strings.TrimSpace(out) != "" {
			return out
		}
		return fmt.Sprintf("unavailable: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		return "(empty)"
	}
	return out
}
