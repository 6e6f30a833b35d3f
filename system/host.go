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
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

const (
	ipForwardKey = "net.ipv4.ip_forward"
	// IPForwardConf persists forwarding across reboots.
	IPForwardConf = "/etc/sysctl.d/99-ipforward.conf"
)

// HostNetwork covers kernel-level settings and read-only inspection of the
// host's links.
type HostNetwork struct {
	netlink NetlinkClient
	sysctl  SysctlClient
	fs      FilesystemClient
}

// NewHostNetwork creates a HostNetwork with injected dependencies.
func NewHostNetwork(nl NetlinkClient, sysctl SysctlClient, fs FilesystemClient) *HostNetwork {
	return &HostNetwork{netlink: nl, sysctl: sysctl, fs: fs}
}

// NewDefaultHostNetwork creates a HostNetwork backed by the real system.
func NewDefaultHostNetwork() *HostNetwork {
	fs := NewDefaultFilesystemClient()
	return NewHostNetwork(NewDefaultNetlinkClient(), NewDefaultSysctlClient(fs), fs)
}

// EnableIPForwarding turns on IPv4 forwarding now and on future boots.
func (h *HostNetwork) EnableIPForwarding() error {
	if err := h.sysctl.Set(ipForwardKey, "1"); err != nil {
		return fmt.Errorf("failed to set %s: %w", ipForwardKey, err)
	}
	if err := h.fs.WriteFile(IPForwardConf, []byte(ipForwardKey+"=1\n"), 0644); err != nil {
		return fmt.Errorf("failed to persist %s: %w", ipForwardKey, err)
	}
	logger.Info("IP forwarding enabled")
	return nil
}

// IPForwarding reports whether IPv4 forwarding is on.
func (h *HostNetwork) IPForwarding() (bool, error) {
	v, err := h.sysctl.Get(ipForwardKey)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// Links reports the kernel state of the named interfaces. Interfaces that
// do not exist are reported as missing.
func (h *HostNetwork) Links(names ...string) []types.LinkStatus {
	statuses := make([]types.LinkStatus, 0, len(names))
	for _, name := range names {
		link, err := h.netlink.LinkByName(name)
		if err != nil {
			statuses = append(statuses, types.LinkStatus{Name: name, State: "missing"})
			continue
		}
		statuses = append(statuses, h.linkStatus(link))
	}
	return statuses
}

func (h *HostNetwork) linkStatus(link netlink.Link) types.LinkStatus {
	attrs := link.Attrs()
	st := types.LinkStatus{
		Name:  attrs.Name,
		Type:  link.Type(),
		MTU:   attrs.MTU,
		State: "down",
	}
	if attrs.Flags&net.FlagUp != 0 {
		st.State = "up"
	}

	if addrs, err := h.netlink.AddrList(link, netlink.FAMILY_V4); err == nil {
		for _, a := range addrs {
			st.Addresses = append(st.Addresses, a.IPNet.String())
		}
	}

	if s := attrs.Statistics; s != nil {
		st.TXBytes = s.TxBytes
		st.RXBytes = s.RxBytes
		st.TXErrors = s.TxErrors
		st.RXErrors = s.RxErrors
	}
	return st
}

// HostInfo gathers hostname, kernel release and uptime.
func (h *HostNetwork) HostInfo() types.HostInfo {
	info := types.HostInfo{}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if data, err := h.fs.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		info.KernelVersion = strings.TrimSpace(string(data))
	}

	if data, err := h.fs.ReadFile("/proc/uptime"); err == nil {
		if fields := strings.Fields(string(data)); len(fields) > 0 {
			if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil {
				info.Uptime = FormatUptime(time.Duration(seconds * float64(time.Second)))
			}
		}
	}

	return info
}

// FormatUptime renders d as "2d 3h 4m", dropping leading zero units.
func FormatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
