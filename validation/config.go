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
	"fmt"
	"strings"

	"github.com/we-are-mono/provisiond/types"
)

// ValidateConfig checks a fully loaded daemon configuration and reports
// every problem at once.
func ValidateConfig(cfg *types.Config) error {
	ec := NewCollector()

	ec.WithContext("interfaces")
	ec.CheckMsg(ValidateInterfaceName(cfg.UplinkInterface), "uplink")
	ec.CheckMsg(ValidateInterfaceName(cfg.APInterface), "access point")
	if cfg.UplinkInterface != "" && cfg.UplinkInterface == cfg.APInterface {
		ec.Check(fmt.Errorf("uplink and access point must be different interfaces (both %s)", cfg.APInterface))
	}

	ec.WithContext("access point")
	ec.Check(ValidateSSID(cfg.SetupSSID))
	ec.Check(ValidatePSK(cfg.SetupPSK))
	if strings.TrimSpace(cfg.APConnectionName) == "" {
		ec.Check(fmt.Errorf("connection name cannot be empty"))
	}
	ec.Check(ValidateGatewayCIDR(cfg.APIPv4CIDR))
	ec.Check(ValidateBand(cfg.APForceBand))
	ec.Check(ValidateChannel(cfg.APForceBand, cfg.APForceChannel))
	if cfg.APForceChannel != "" && cfg.APForceBand == "" {
		ec.Check(fmt.Errorf("forced channel %s requires a forced band", cfg.APForceChannel))
	}

	ec.WithContext("ports")
	ec.CheckMsg(ValidatePort(cfg.HTTPPort), "http")
	ec.CheckMsg(ValidatePort(cfg.CaptiveHTTPPort), "captive http")
	ec.CheckMsg(ValidatePort(cfg.DNSPort), "dns")

	ec.WithContext("routes")
	ec.CheckMsg(ValidateMetric(cfg.WifiMetric), "wifi")
	ec.CheckMsg(ValidateMetric(cfg.EthMetric), "ethernet")

	ec.WithContext("connectivity")
	ec.Check(ValidateHTTPURL(cfg.CheckURL))
	if cfg.CheckInterval.Std() <= 0 {
		ec.Check(fmt.Errorf("check interval must be positive"))
	}
	if cfg.CheckTimeout.Std() <= 0 {
		ec.Check(fmt.Errorf("check timeout must be positive"))
	}
	if cfg.RequiredSuccesses < 1 {
		ec.Check(fmt.Errorf("required successes must be at least 1, got %d", cfg.RequiredSuccesses))
	}

	ec.WithContext("daemon")
	if cfg.CommandTimeout.Std() <= 0 {
		ec.Check(fmt.Errorf("command timeout must be positive"))
	}
	if cfg.DeviceWaitTimeout.Std() < 0 {
		ec.Check(fmt.Errorf("device wait timeout cannot be negative"))
	}
	if cfg.ProvisionedMarker == "" {
		ec.Check(fmt.Errorf("provisioned marker path cannot be empty"))
	}
	switch cfg.FirewallBackend {
	case types.FirewallBackendNetlink, types.FirewallBackendNft:
	default:
		ec.Check(fmt.Errorf("invalid firewall backend %s (must be %s or %s)",
			cfg.FirewallBackend, types.FirewallBackendNetlink, types.FirewallBackendNft))
	}
	ec.CheckMsg(ValidateListenAddress(cfg.MetricsListen), "metrics")
	switch cfg.LogFormat {
	case "json", "text":
	default:
		ec.Check(fmt.Errorf("invalid log format %s (must be json or text)", cfg.LogFormat))
	}

	return ec.Error()
}
