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

// Package validation provides reusable validation helpers for provisiond configuration.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// ValidatePort validates that a port number is in the valid range [1, 65535].
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of valid range [1, 65535]", port)
	}
	return nil
}

// ValidateIP validates that a string is a valid IPv4 or IPv6 address.
func ValidateIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("IP address cannot be empty")
	}

	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	return nil
}

// ValidateCIDR validates that a string is valid CIDR notation.
func ValidateCIDR(cidr string) error {
	if cidr == "" {
		return fmt.Errorf("CIDR cannot be empty")
	}

	_, _, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR notation %s: %w", cidr, err)
	}

	return nil
}

// ValidateGatewayCIDR validates an IPv4 host address with prefix, e.g. 10.42.0.1/24.
// The host part must not be the network address.
func ValidateGatewayCIDR(cidr string) error {
	if err := ValidateCIDR(cidr); err != nil {
		return err
	}

	ip, ipNet, _ := net.ParseCIDR(cidr)
	if ip.To4() == nil {
		return fmt.Errorf("gateway %s must be an IPv4 address", cidr)
	}
	if ip.Equal(ipNet.IP) {
		return fmt.Errorf("gateway %s is the network address, use a host address", cidr)
	}

	return nil
}

var ifaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateInterfaceName validates a Linux network interface name (IFNAMSIZ is 16 including NUL).
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("interface name cannot be empty")
	}
	if len(name) > 15 {
		return fmt.Errorf("interface name %s too long (max 15 characters)", name)
	}
	if name == "." || name == ".." || !ifaceNameRegex.MatchString(name) {
		return fmt.Errorf("invalid interface name: %s", name)
	}
	return nil
}

// ValidateSSID validates a wireless network name (1 to 32 bytes).
func ValidateSSID(ssid string) error {
	if ssid == "" {
		return fmt.Errorf("SSID cannot be empty")
	}
	if len(ssid) > 32 {
		return fmt.Errorf("SSID %q too long (max 32 bytes)", ssid)
	}
	return nil
}

// ValidatePSK validates a WPA2 passphrase: 8 to 63 printable ASCII characters.
func ValidatePSK(psk string) error {
	if len(psk) < 8 || len(psk) > 63 {
		return fmt.Errorf("passphrase must be 8 to 63 characters, got %d", len(psk))
	}
	for _, r := range psk {
		if r < 0x20 || r > 0x7e {
			return fmt.Errorf("passphrase contains non-printable or non-ASCII characters")
		}
	}
	return nil
}

// ValidateBand validates a NetworkManager wireless band.
// Empty means "not forced" and is accepted.
func ValidateBand(band string) error {
	switch band {
	case "", "bg", "a":
		return nil
	default:
		return fmt.Errorf("invalid band %s (must be bg or a)", band)
	}
}

// ValidateChannel validates a wireless channel number for the given band.
// Empty means "not forced" and is accepted.
func ValidateChannel(band, channel string) error {
	if channel == "" {
		return nil
	}

	ch, err := strconv.Atoi(channel)
	if err != nil {
		return fmt.Errorf("invalid channel %s: %w", channel, err)
	}

	switch band {
	case "bg":
		if ch < 1 || ch > 14 {
			return fmt.Errorf("channel %d out of range for band bg [1, 14]", ch)
		}
	case "a":
		if ch < 32 || ch > 177 {
			return fmt.Errorf("channel %d out of range for band a [32, 177]", ch)
		}
	default:
		if ch < 1 || ch > 233 {
			return fmt.Errorf("channel %d out of valid range [1, 233]", ch)
		}
	}

	return nil
}

// ValidateHTTPURL validates an absolute http or https URL.
func ValidateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %s: %w", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("invalid URL %s (scheme must be http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %s (missing host)", raw)
	}

	return nil
}

// ValidateListenAddress validates a "host:port" listen address. Host may be empty.
func ValidateListenAddress(addr string) error {
	if addr == "" {
		return nil // Empty disables the listener
	}

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %s (expected 'host:port'): %w", addr, err)
	}
	if host != "" && net.ParseIP(host) == nil && host != "localhost" {
		return fmt.Errorf("invalid listen host in %s", addr)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid listen port in %s: %w", addr, err)
	}

	return ValidatePort(port)
}

// ValidateMetric validates a routing metric value.
// Metric must be non-negative.
func ValidateMetric(metric int) error {
	if metric < 0 {
		return fmt.Errorf("metric %d cannot be negative", metric)
	}
	return nil
}
