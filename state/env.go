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

package state

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/we-are-mono/provisiond/types"
	"github.com/we-are-mono/provisiond/validation"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "PROVISIOND_"

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ParseBool reports whether s is one of 1, true, yes, y, on (case-insensitive).
// Every other value, including the empty string, is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// ApplyEnv overlays PROVISIOND_* environment variables onto cfg.
// Malformed numbers are reported together.
func ApplyEnv(cfg *types.Config, lookup LookupFunc) error {
	ec := validation.NewCollector().WithContext("environment")

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			ec.Check(fmt.Errorf("%s%s: invalid integer %q", EnvPrefix, key, v))
			return
		}
		*dst = n
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = ParseBool(v)
		}
	}
	duration := func(key string, dst *types.Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := types.ParseSeconds(strings.TrimSpace(v))
		if err != nil {
			ec.Check(fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
			return
		}
		*dst = types.Duration(d)
	}

	str("WLAN_IF", &cfg.UplinkInterface)
	str("AP_IF", &cfg.APInterface)
	str("SETUP_SSID", &cfg.SetupSSID)
	str("SETUP_PSK", &cfg.SetupPSK)
	str("AP_CON_NAME", &cfg.APConnectionName)
	str("AP_IPV4_CIDR", &cfg.APIPv4CIDR)
	str("AP_FORCE_BAND", &cfg.APForceBand)
	str("AP_FORCE_CHANNEL", &cfg.APForceChannel)
	str("WIFI_CON_NAME", &cfg.WifiConnectionName)
	str("ETH_CON_NAME", &cfg.EthConnectionName)
	str("CHECK_URL", &cfg.CheckURL)
	str("PROVISIONED_MARKER", &cfg.ProvisionedMarker)
	str("FIREWALL_BACKEND", &cfg.FirewallBackend)
	str("METRICS_LISTEN", &cfg.MetricsListen)
	str("SOCKET_PATH", &cfg.SocketPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	integer("HTTP_PORT", &cfg.HTTPPort)
	integer("CAPTIVE_HTTP_PORT", &cfg.CaptiveHTTPPort)
	integer("DNS_PORT", &cfg.DNSPort)
	integer("WIFI_METRIC", &cfg.WifiMetric)
	integer("ETH_METRIC", &cfg.EthMetric)
	integer("REQUIRED_SUCCESSES", &cfg.RequiredSuccesses)

	duration("CHECK_INTERVAL", &cfg.CheckInterval)
	duration("CHECK_TIMEOUT", &cfg.CheckTimeout)
	duration("COMMAND_TIMEOUT", &cfg.CommandTimeout)
	duration("DEVICE_WAIT_TIMEOUT", &cfg.DeviceWaitTimeout)

	boolean("AUTO_TEARDOWN", &cfg.AutoTeardown)
	boolean("EXIT_ON_ONLINE", &cfg.ExitOnOnline)
	boolean("FORCE_SETUP", &cfg.ForceSetup)
	boolean("SKIP_IF_PROVISIONED", &cfg.SkipIfProvisioned)
	boolean("STRICT_AP_MODE", &cfg.StrictAPMode)
	boolean("PAUSE_PROBES_WHILE_PROVISIONING", &cfg.PauseProbesWhileProvisioning)

	return ec.Error()
}
