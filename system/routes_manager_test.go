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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"github.com/we-are-mono/provisiond/types"
)

const deviceStatusCmd = "nmcli -t -f DEVICE,TYPE,STATE,CONNECTION device status"

func TestRouteAdjusterAdjust(t *testing.T) {
	tests := []struct {
		name     string
		devices  string
		wifiName string
		ethName  string
		want     []string
	}{
		{
			name:    "auto detect prefers eth0",
			devices: "wlan0:wifi:connected:Home\neth1:ethernet:connected:Dock\neth0:ethernet:connected:Wired connection 1\n",
			want: []string{
				"nmcli connection modify Home ipv4.route-metric 100",
				"nmcli connection down Home",
				"nmcli connection up Home",
				"nmcli connection modify Wired connection 1 ipv4.route-metric 600",
				"nmcli connection down Wired connection 1",
				"nmcli connection up Wired connection 1",
			},
		},
		{
			name:    "first connected ethernet without eth0",
			devices: "wlan0:wifi:connected:Home\nenp1s0:ethernet:unavailable:--\nenp2s0:ethernet:connected:Uplink\n",
			want: []string{
				"nmcli connection modify Home ipv4.route-metric 100",
				"nmcli connection down Home",
				"nmcli connection up Home",
				"nmcli connection modify Uplink ipv4.route-metric 600",
				"nmcli connection down Uplink",
				"nmcli connection up Uplink",
			},
		},
		{
			name:    "no wired link",
			devices: "wlan0:wifi:connected:Home\n",
			want: []string{
				"nmcli connection modify Home ipv4.route-metric 100",
				"nmcli connection down Home",
				"nmcli connection up Home",
			},
		},
		{
			name:    "nothing connected",
			devices: "wlan0:wifi:disconnected:--\n",
			want:    nil,
		},
		{
			name:     "explicit names skip detection",
			wifiName: "MyWifi",
			ethName:  "MyEth",
			want: []string{
				"nmcli connection modify MyWifi ipv4.route-metric 100",
				"nmcli connection down MyWifi",
				"nmcli connection up MyWifi",
				"nmcli connection modify MyEth ipv4.route-metric 600",
				"nmcli connection down MyEth",
				"nmcli connection up MyEth",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewMockCommandRunner()
			runner.SetOutput(deviceStatusCmd, tt.devices)

			cfg := types.DefaultConfig()
			cfg.WifiConnectionName = tt.wifiName
			cfg.EthConnectionName = tt.ethName

			ra := NewRouteAdjuster(NewNMClient(runner, time.Second), NewMockNetlinkClient(), cfg)
			require.NoError(t, ra.Adjust(context.Background()))

			var got []string
			for _, c := range runner.History() {
				if c != deviceStatusCmd {
					got = append(got, c)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteAdjusterErrorsAreJoined(t *testing.T) {
	runner := NewMockCommandRunner()
	runner.SetOutput(deviceStatusCmd, "wlan0:wifi:connected:Home\neth0:ethernet:connected:Wired\n")
	runner.SetResult("nmcli connection modify Home ipv4.route-metric 100", "Error: permission denied", errExit)
	runner.SetResult("nmcli connection up Wired", "Error: activation failed", errExit)

	ra := NewRouteAdjuster(NewNMClient(runner, time.Second), NewMockNetlinkClient(), types.DefaultConfig())
	err := ra.Adjust(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "modify connection Home")
	assert.Contains(t, err.Error(), "activate Wired")

	assert.False(t, runner.Ran("nmcli connection down Home"), "failed metric change skips the bounce")
	assert.True(t, runner.Ran("nmcli connection down Wired"))
}

func TestRouteAdjusterDeviceStatusFailure(t *testing.T) {
	runner := NewMockCommandRunner()
	runner.SetResult(deviceStatusCmd, "Error: NetworkManager is not running.", errExit)

	ra := NewRouteAdjuster(NewNMClient(runner, time.Second), NewMockNetlinkClient(), types.DefaultConfig())
	assert.Error(t, ra.Adjust(context.Background()))
}

func TestRouteAdjusterRoutes(t *testing.T) {
	nl := NewMockNetlinkClient()
	nl.Links["wlan0"] = &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "wlan0", Index: 3}}
	nl.Links["eth0"] = &netlink.Device{LinkAttrs: netlink.LinkAttrs{Name: "eth0", Index: 2}}

	_, lan, _ := net.ParseCIDR("192.168.1.0/24")
	nl.Routes = []netlink.Route{
		{LinkIndex: 2, Gw: net.ParseIP("10.0.0.1"), Priority: 600},
		{LinkIndex: 3, Gw: net.ParseIP("192.168.1.1"), Priority: 100},
		{LinkIndex: 3, Dst: lan, Src: net.ParseIP("192.168.1.50"), Priority: 100},
	}

	ra := NewRouteAdjuster(nil, nl, types.DefaultConfig())
	routes, err := ra.Routes()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"default via 192.168.1.1 dev wlan0 metric 100",
		"192.168.1.0/24 dev wlan0 src 192.168.1.50 metric 100",
		"default via 10.0.0.1 dev eth0 metric 600",
	}, routes)
}

func TestRouteAdjusterRoutesError(t *testing.T) {
	nl := NewMockNetlinkClient()
	nl.RouteListError = errors.New("netlink: operation not supported")

	ra := NewRouteAdjuster(nil, nl, types.DefaultConfig())
	_, err := ra.Routes()
	assert.Error(t, err)
}
