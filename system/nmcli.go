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
	"strconv"
	"strings"
	"time"

	"github.com/we-are-mono/provisiond/types"
)

// ActiveConnection is a row of "nmcli connection show --active".
type ActiveConnection struct {
	Name   string
	Device string
}

// NMClient drives NetworkManager through nmcli.
type NMClient struct {
	exec executor
}

// NewNMClient creates an nmcli wrapper. Every invocation is bounded by timeout.
func NewNMClient(runner CommandRunner, timeout time.Duration) *NMClient {
	return &NMClient{exec: executor{runner: runner, timeout: timeout}}
}

// nmcli runs nmcli and treats an "Error:" prefixed output as failure even
// when the exit status is zero.
func (c *NMClient) nmcli(ctx context.Context, args ...string) ([]byte, error) {
	out, err := c.exec.run(ctx, "nmcli", args...)
	if err != nil {
		return out, err
	}
	if hasErrorPrefix(out) {
		return out, commandError("nmcli", args, out, errors.New("nmcli reported an error"))
	}
	return out, nil
}

// DeviceStatus returns NetworkManager's device table.
func (c *NMClient) DeviceStatus(ctx context.Context) ([]types.Device, error) {
	out, err := c.nmcli(ctx, "-t", "-f", "DEVICE,TYPE,STATE,CONNECTION", "device", "status")
	if err != nil {
		return nil, fmt.Errorf("failed to read device status: %w", err)
	}

	var devices []types.Device
	for _, fields := range parseTerse(out) {
		if len(fields) < 4 {
			continue
		}
		devices = append(devices, types.Device{
			Name:       fields[0],
			Type:       fields[1],
			State:      fields[2],
			Connection: fields[3],
		})
	}
	return devices, nil
}

// DeviceStatusTable returns the human readable device table, for diagnostics.
func (c *NMClient) DeviceStatusTable(ctx context.Context) (string, error) {
	out, err := c.nmcli(ctx, "-f", "DEVICE,TYPE,STATE,CONNECTION", "device", "status")
	return string(out), err
}

// HasDevice reports whether NetworkManager lists name as a device.
func (c *NMClient) HasDevice(ctx context.Context, name string) (bool, error) {
	out, err := c.nmcli(ctx, "-t", "-f", "DEVICE", "device", "status")
	if err != nil {
		return false, err
	}
	for _, fields := range parseTerse(out) {
		if len(fields) > 0 && fields[0] == name {
			return true, nil
		}
	}
	return false, nil
}

// SetManaged hands a device to (or takes it from) NetworkManager.
func (c *NMClient) SetManaged(ctx context.Context, device string, managed bool) error {
	value := "no"
	if managed {
		value = "yes"
	}
	_, err := c.nmcli(ctx, "device", "set", device, "managed", value)
	return err
}

// ConnectionNames lists all connection profiles.
func (c *NMClient) ConnectionNames(ctx context.Context) ([]string, error) {
	out, err := c.nmcli(ctx, "-t", "-f", "NAME", "connection", "show")
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	var names []string
	for _, fields := range parseTerse(out) {
		if len(fields) > 0 && fields[0] != "" {
			names = append(names, fields[0])
		}
	}
	return names, nil
}

// HasConnection reports whether a connection profile with name exists.
func (c *NMClient) HasConnection(ctx context.Context, name string) (bool, error) {
	names, err := c.ConnectionNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ActiveConnections lists active profiles with their devices. The raw
// terse output is returned as well for diagnostics.
func (c *NMClient) ActiveConnections(ctx context.Context) ([]ActiveConnection, string, error) {
	out, err := c.nmcli(ctx, "-t", "-f", "NAME,DEVICE", "connection", "show", "--active")
	if err != nil {
		return nil, string(out), fmt.Errorf("failed to list active connections: %w", err)
	}

	var active []ActiveConnection
	for _, fields := range parseTerse(out) {
		if len(fields) < 2 {
			continue
		}
		active = append(active, ActiveConnection{Name: fields[0], Device: fields[1]})
	}
	return active, string(out), nil
}

// AddWifiConnection creates a wifi profile bound to iface.
func (c *NMClient) AddWifiConnection(ctx context.Context, iface, name, ssid string) error {
	_, err := c.nmcli(ctx, "connection", "add", "type", "wifi", "ifname", iface, "con-name", name, "ssid", ssid)
	if err != nil {
		return fmt.Errorf("failed to add connection %s: %w", name, err)
	}
	return nil
}

// ModifyConnection applies property/value pairs to a profile. A rejected
// band or channel is reported as ErrChannelRejected.
func (c *NMClient) ModifyConnection(ctx context.Context, name string, settings ...string) error {
	args := append([]string{"connection", "modify", name}, settings...)
	out, err := c.nmcli(ctx, args...)
	if isChannelRejection(out) {
		return fmt.Errorf("%w: %s", ErrChannelRejected, strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("failed to modify connection %s: %w", name, redactErr(err, secretValues(settings)))
	}
	return nil
}

// Up activates a connection profile.
func (c *NMClient) Up(ctx context.Context, name string) error {
	out, err := c.nmcli(ctx, "connection", "up", name)
	if err == nil {
		return nil
	}
	if isChannelRejection(out) {
		return fmt.Errorf("%w: %s", ErrChannelRejected, strings.TrimSpace(string(out)))
	}
	return fmt.Errorf("failed to activate %s: %w", name, err)
}

// Down deactivates a connection profile. A profile that is already inactive is not an error.
func (c *NMClient) Down(ctx context.Context, name string) error {
	out, err := c.nmcli(ctx, "connection", "down", name)
	if err == nil {
		return nil
	}
	lower := strings.ToLower(string(out))
	if strings.Contains(lower, "not an active connection") || strings.Contains(lower, "no active connection") {
		return nil
	}
	return fmt.Errorf("failed to deactivate %s: %w", name, err)
}

// WifiConnect joins ssid on iface. The password never appears in returned errors.
func (c *NMClient) WifiConnect(ctx context.Context, iface, ssid, password string) error {
	args := []string{"device", "wifi", "connect", ssid, "ifname", iface}
	if password != "" {
		args = append(args, "password", password)
	}

	_, err := c.nmcli(ctx, args...)
	if err != nil {
		return fmt.Errorf("failed to connect to %q: %w", ssid, redactErr(err, []string{password}))
	}
	return nil
}

// WifiList scans for networks visible on iface. Entries are returned as
// reported: neither deduplicated nor sorted.
func (c *NMClient) WifiList(ctx context.Context, iface string) ([]types.Network, error) {
	out, err := c.nmcli(ctx, "-t", "-f", "SSID,SECURITY,SIGNAL", "device", "wifi", "list", "ifname", iface)
	if err != nil {
		return nil, fmt.Errorf("wifi scan failed: %w", err)
	}

	var networks []types.Network
	for _, fields := range parseTerse(out) {
		if len(fields) < 3 || strings.TrimSpace(fields[0]) == "" {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			signal = 0
		}
		security := fields[1]
		if security == "--" {
			security = ""
		}
		networks = append(networks, types.Network{
			SSID:     fields[0],
			Security: security,
			Signal:   signal,
		})
	}
	return networks, nil
}

// SetRouteMetric sets ipv4.route-metric on a connection profile.
func (c *NMClient) SetRouteMetric(ctx context.Context, name string, metric int) error {
	return c.ModifyConnection(ctx, name, "ipv4.route-metric", strconv.Itoa(metric))
}

// parseTerse splits nmcli -t output into rows of unescaped fields.
func parseTerse(out []byte) [][]string {
	var rows [][]string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, splitTerse(line))
	}
	return rows
}

// splitTerse splits one terse line on unescaped colons. nmcli escapes
// ':' and '\' inside values with a backslash.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

func hasErrorPrefix(out []byte) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(string(out))), "error:")
}

func isChannelRejection(out []byte) bool {
	lower := strings.ToLower(string(out))
	if !strings.Contains(lower, "error") && !strings.Contains(lower, "failed") {
		return false
	}
	return strings.Contains(lower, "802-11-wireless.channel") || strings.Contains(lower, "802-11-wireless.band")
}

// secretValues returns the values of psk/password settings in a
// property/value list.
func secretValues(settings []string) []string {
	var secrets []string
	for i := 0; i+1 < len(settings); i += 2 {
		key := strings.ToLower(settings[i])
		if strings.HasSuffix(key, ".psk") || strings.Contains(key, "password") {
			secrets = append(secrets, settings[i+1])
		}
	}
	return secrets
}

// redactErr replaces secrets in a command error message.
func redactErr(err error, secrets []string) error {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}
	redacted := *cmdErr
	for _, s := range secrets {
		if s == "" {
			continue
		}
		redacted.Command = strings.ReplaceAll(redacted.Command, s, "********")
		redacted.Output = strings.ReplaceAll(redacted.Output, s, "********")
	}
	return &redacted
}
