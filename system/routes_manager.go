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
	"net"
	"sort"

	"github.com/vishvananda/netlink"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

// primaryWiredDevice is preferred when several wired devices are connected.
const primaryWiredDevice = "eth0"

// RouteAdjuster biases route metrics so that the wireless uplink is
// preferred over any wired link while provisioning.
type RouteAdjuster struct {
	nm      *NMClient
	netlink NetlinkClient
	cfg     *types.Config
}

// NewRouteAdjuster creates a RouteAdjuster.
func NewRouteAdjuster(nm *NMClient, nl NetlinkClient, cfg *types.Config) *RouteAdjuster {
	return &RouteAdjuster{nm: nm, netlink: nl, cfg: cfg}
}

type metricTarget struct {
	connection string
	metric     int
}

// Adjust sets the wireless and wired route metrics, then cycles each
// profile so the kernel routes are recomputed.
func (r *RouteAdjuster) Adjust(ctx context.Context) error {
	wifiCon, ethCon, err := r.resolve(ctx)
	if err != nil {
		return err
	}

	var targets []metricTarget
	if wifiCon != "" {
		targets = append(targets, metricTarget{wifiCon, r.cfg.WifiMetric})
	}
	if ethCon != "" {
		targets = append(targets, metricTarget{ethCon, r.cfg.EthMetric})
	}
	if len(targets) == 0 {
		logger.Info("No active uplink profiles, leaving route metrics alone")
		return nil
	}

	var errs []error
	for _, t := range targets {
		if err := r.nm.SetRouteMetric(ctx, t.connection, t.metric); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := r.nm.Down(ctx, t.connection); err != nil {
			errs = append(errs, err)
		}
		if err := r.nm.Up(ctx, t.connection); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("Route metric set",
			logger.Field{Key: "connection", Value: t.connection},
			logger.Field{Key: "metric", Value: t.metric})
	}

	return errors.Join(errs...)
}

// resolve returns the wireless and wired profile names. Configured names
// win; otherwise they are read from NetworkManager's device table.
func (r *RouteAdjuster) resolve(ctx context.Context) (string, string, error) {
	wifiCon, ethCon := r.cfg.WifiConnectionName, r.cfg.EthConnectionName
	if wifiCon != "" && ethCon != "" {
		return wifiCon, ethCon, nil
	}

	devices, err := r.nm.DeviceStatus(ctx)
	if err != nil {
		return "", "", err
	}

	if wifiCon == "" {
		for _, d := range devices {
			if d.Name == r.cfg.UplinkInterface && d.Connected() {
				wifiCon = d.Connection
				break
			}
		}
	}
	if ethCon == "" {
		ethCon = pickWired(devices)
	}

	return wifiCon, ethCon, nil
}

// pickWired returns the connection of eth0 if it is connected, else of the
// first connected ethernet device.
func pickWired(devices []types.Device) string {
	first := ""
	for _, d := range devices {
		if d.Type != "ethernet" || !d.Connected() {
			continue
		}
		if d.Name == primaryWiredDevice {
			return d.Connection
		}
		if first == "" {
			first = d.Connection
		}
	}
	return first
}

// Routes lists the IPv4 main routing table, lowest metric first.
func (r *RouteAdjuster) Routes() ([]string, error) {
	routes, err := r.netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	names := map[int]string{}
	if links, err := r.netlink.LinkList(); err == nil {
		for _, l := range links {
			names[l.Attrs().Index] = l.Attrs().Name
		}
	}

	sort.SliceStable(routes, func(i, j int) bool { return routes[i].Priority < routes[j].Priority })

	lines := make([]string, 0, len(routes))
	for _, rt := range routes {
		lines = append(lines, formatRoute(rt, names[rt.LinkIndex]))
	}
	return lines, nil
}

func formatRoute(rt netlink.Route, dev string) string {
	dst := "default"
	if rt.Dst != nil && !isDefaultNet(rt.Dst) {
		dst = rt.Dst.String()
	}

	s := dst
	if rt.Gw != nil {
		s += " via " + rt.Gw.String()
	}
	if dev != "" {
		s += " dev " + dev
	}
	if rt.Src != nil {
		s += " src " + rt.Src.String()
	}
	if rt.Priority != 0 {
		s += fmt.Sprintf(" metric %d", rt.Priority)
	}
	return s
}

func isDefaultNet(n *net.IPNet) bool {
	ones, _ := n.Mask.Size()
	return ones == 0 && n.IP.IsUnspecified()
}
