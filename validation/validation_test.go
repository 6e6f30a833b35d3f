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

package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/types"
)

func TestValidatePort(t *testing.T) {
	tests := []struct {
		name      string
		port      int
		wantError bool
	}{
		{"valid port 80", 80, false},
		{"valid port 1", 1, false},
		{"valid port 65535", 65535, false},
		{"port too low", 0, true},
		{"port negative", -1, true},
		{"port too high", 65536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePort(tt.port)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateGatewayCIDR(t *testing.T) {
	tests := []struct {
		name      string
		cidr      string
		wantError bool
	}{
		{"default setup gateway", "10.42.0.1/24", false},
		{"other private range", "192.168.4.1/24", false},
		{"network address", "10.42.0.0/24", true},
		{"missing prefix", "10.42.0.1", true},
		{"ipv6", "fd00::1/64", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGatewayCIDR(tt.cidr)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateInterfaceName(t *testing.T) {
	tests := []struct {
		name      string
		iface     string
		wantError bool
	}{
		{"wlan0", "wlan0", false},
		{"ap0", "ap0", false},
		{"dotted vlan", "eth0.100", false},
		{"empty", "", true},
		{"too long", "wlan0123456789ab", true},
		{"space", "wlan 0", true},
		{"slash", "wlan/0", true},
		{"dot", ".", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInterfaceName(tt.iface)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePSK(t *testing.T) {
	tests := []struct {
		name      string
		psk       string
		wantError bool
	}{
		{"default", "setup1234", false},
		{"eight chars", "12345678", false},
		{"sixty three chars", strings.Repeat("a", 63), false},
		{"too short", "1234567", true},
		{"too long", strings.Repeat("a", 64), true},
		{"non ascii", "pässwörter", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePSK(tt.psk)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateChannel(t *testing.T) {
	tests := []struct {
		name      string
		band      string
		channel   string
		wantError bool
	}{
		{"not forced", "", "", false},
		{"bg channel 6", "bg", "6", false},
		{"bg channel 14", "bg", "14", false},
		{"bg channel 36", "bg", "36", true},
		{"a channel 36", "a", "36", false},
		{"a channel 6", "a", "6", true},
		{"not a number", "bg", "six", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChannel(tt.band, tt.channel)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBand(t *testing.T) {
	assert.NoError(t, ValidateBand(""))
	assert.NoError(t, ValidateBand("bg"))
	assert.NoError(t, ValidateBand("a"))
	assert.Error(t, ValidateBand("5ghz"))
}

func TestValidateHTTPURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantError bool
	}{
		{"generate_204", "http://connectivitycheck.gstatic.com/generate_204", false},
		{"https", "https://example.com/", false},
		{"empty", "", true},
		{"ftp", "ftp://example.com/", true},
		{"no host", "http:///path", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHTTPURL(tt.url)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateListenAddress(t *testing.T) {
	assert.NoError(t, ValidateListenAddress(""))
	assert.NoError(t, ValidateListenAddress(":9100"))
	assert.NoError(t, ValidateListenAddress("127.0.0.1:9100"))
	assert.NoError(t, ValidateListenAddress("localhost:9100"))
	assert.Error(t, ValidateListenAddress("9100"))
	assert.Error(t, ValidateListenAddress(":0"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*types.Config)
		errorMsgs []string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *types.Config) {},
		},
		{
			name: "same interface twice",
			mutate: func(c *types.Config) {
				c.APInterface = "wlan0"
			},
			errorMsgs: []string{"interfaces: uplink and access point must be different"},
		},
		{
			name: "forced channel without band",
			mutate: func(c *types.Config) {
				c.APForceChannel = "11"
			},
			errorMsgs: []string{"requires a forced band"},
		},
		{
			name: "several problems reported together",
			mutate: func(c *types.Config) {
				c.SetupPSK = "short"
				c.HTTPPort = 0
				c.RequiredSuccesses = 0
				c.CheckInterval = 0
				c.FirewallBackend = "iptables"
			},
			errorMsgs: []string{
				"access point: passphrase must be 8 to 63 characters",
				"ports: http: port 0",
				"connectivity: required successes must be at least 1",
				"connectivity: check interval must be positive",
				"daemon: invalid firewall backend iptables",
			},
		},
		{
			name: "bad log format",
			mutate: func(c *types.Config) {
				c.LogFormat = "xml"
			},
			errorMsgs: []string{"invalid log format xml"},
		},
		{
			name: "negative device wait",
			mutate: func(c *types.Config) {
				c.DeviceWaitTimeout = types.Duration(-time.Second)
			},
			errorMsgs: []string{"device wait timeout cannot be negative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := types.DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if len(tt.errorMsgs) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.errorMsgs {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}
}
