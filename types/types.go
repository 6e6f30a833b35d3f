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

// Package types defines the core data structures shared by the provisioning
// daemon, its CLI and the system integration layer.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Mode is the provisioning lifecycle state of the daemon.
type Mode string

const (
	ModeStarting     Mode = "starting"
	ModeSetup        Mode = "setup"
	ModeProvisioning Mode = "provisioning"
	ModeOnline       Mode = "online"
	ModeError        Mode = "error"
)

// Modes lists every mode in a stable order (used for metrics labels).
var Modes = []Mode{ModeStarting, ModeSetup, ModeProvisioning, ModeOnline, ModeError}

// Firewall backends.
const (
	FirewallBackendNetlink = "netlink"
	FirewallBackendNft     = "nft"
)

// Wireless bands understood by NetworkManager.
const (
	BandBG = "bg"
	BandA  = "a"
)

// Fallback channel used whenever the preferred one is rejected.
const (
	FallbackBand    = BandBG
	FallbackChannel = "6"
)

// Duration is a time.Duration that unmarshals from either a JSON number
// of seconds (3, 0.5) or a Go duration string ("3s", "500ms").
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case string:
		parsed, err := ParseSeconds(v)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// MarshalJSON renders the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ParseSeconds parses "3", "0.5" (seconds) or a Go duration string such as "3s".
func ParseSeconds(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (expected seconds or a value like 3s)", s)
	}
	return d, nil
}

// Config holds every tunable of the provisioning daemon. It is loaded once at
// startup by state.LoadConfig and treated as immutable afterwards.
type Config struct {
	UplinkInterface    string `json:"uplink_interface"`
	APInterface        string `json:"ap_interface"`
	SetupSSID          string `json:"setup_ssid"`
	SetupPSK           string `json:"setup_psk"`
	APConnectionName   string `json:"ap_connection_name"`
	APIPv4CIDR         string `json:"ap_ipv4_cidr"`
	APForceBand        string `json:"ap_force_band,omitempty"`
	APForceChannel     string `json:"ap_force_channel,omitempty"`
	WifiConnectionName string `json:"wifi_connection_name,omitempty"`
	EthConnectionName  string `json:"eth_connection_name,omitempty"`
	CheckURL           string `json:"check_url"`
	ProvisionedMarker  string `json:"provisioned_marker"`
	FirewallBackend    string `json:"firewall_backend"`
	MetricsListen      string `json:"metrics_listen,omitempty"`
	SocketPath         string `json:"socket_path"`
	LogLevel           string `json:"log_level"`
	LogFormat          string `json:"log_format"`

	HTTPPort          int `json:"http_port"`
	CaptiveHTTPPort   int `json:"captive_http_port"`
	DNSPort           int `json:"dns_port"`
	WifiMetric        int `json:"wifi_metric"`
	EthMetric         int `json:"eth_metric"`
	RequiredSuccesses int `json:"required_successes"`

	CheckInterval     Duration `json:"check_interval"`
	CheckTimeout      Duration `json:"check_timeout"`
	CommandTimeout    Duration `json:"command_timeout"`
	DeviceWaitTimeout Duration `json:"device_wait_timeout"`

	AutoTeardown                 bool `json:"auto_teardown"`
	ExitOnOnline                 bool `json:"exit_on_online"`
	ForceSetup                   bool `json:"force_setup"`
	SkipIfProvisioned            bool `json:"skip_if_provisioned"`
	StrictAPMode                 bool `json:"strict_ap_mode"`
	PauseProbesWhileProvisioning bool `json:"pause_probes_while_provisioning"`
}

// DefaultConfig returns the configuration used when neither a config file
// nor environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		UplinkInterface:   "wlan0",
		APInterface:       "ap0",
		SetupSSID:         "Pi-Setup",
		SetupPSK:          "setup1234",
		APConnectionName:  "SetupAP",
		APIPv4CIDR:        "10.42.0.1/24",
		CheckURL:          "http://connectivitycheck.gstatic.com/generate_204",
		ProvisionedMarker: "/var/lib/provisiond/provisioned",
		FirewallBackend:   FirewallBackendNetlink,
		SocketPath:        "/var/run/provisiond.sock",
		LogLevel:          "info",
		LogFormat:         "json",

		HTTPPort:          8080,
		CaptiveHTTPPort:   80,
		DNSPort:           53,
		WifiMetric:        100,
		EthMetric:         600,
		RequiredSuccesses: 3,

		CheckInterval:     Duration(3 * time.Second),
		CheckTimeout:      Duration(5 * time.Second),
		CommandTimeout:    Duration(30 * time.Second),
		DeviceWaitTimeout: Duration(3 * time.Second),

		AutoTeardown:                 true,
		SkipIfProvisioned:            true,
		PauseProbesWhileProvisioning: true,
	}
}

// Network is one entry of a wireless scan, deduplicated by SSID.
type Network struct {
	SSID     string `json:"ssid"`
	Security string `json:"security"`
	Signal   int    `json:"signal"`
}

// NetworkProfile describes the access point connection profile as applied
// to NetworkManager. The passphrase never leaves the daemon.
type NetworkProfile struct {
	Name           string `json:"name"`
	Interface      string `json:"interface"`
	SSID           string `json:"ssid"`
	Passphrase     string `json:"-"`
	Band           string `json:"band"`
	Channel        string `json:"channel"`
	AddressingMode string `json:"addressing_mode"`
	GatewayCIDR    string `json:"gateway_cidr"`
}

// ProbeResult is the outcome of a single connectivity check.
type ProbeResult struct {
	Code    string        `json:"code"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
	Open    bool          `json:"open"`
}

// ProbeSample is a ProbeResult recorded in the daemon's probe history.
type ProbeSample struct {
	At        time.Time `json:"at"`
	Code      string    `json:"code"`
	LatencyMS float64   `json:"latency_ms"`
	Open      bool      `json:"open"`
}

// DaemonStatus is the externally visible snapshot returned by the status command.
type DaemonStatus struct {
	Mode              Mode           `json:"mode"`
	LastError         string         `json:"last_error,omitempty"`
	LastProbeCode     string         `json:"last_probe_code,omitempty"`
	LastProbeAt       *time.Time     `json:"last_probe_at,omitempty"`
	OnlineAt          *time.Time     `json:"online_at,omitempty"`
	UplinkInterface   string         `json:"wlan_if"`
	APInterface       string         `json:"ap_if"`
	SetupSSID         string         `json:"setup_ssid"`
	CheckURL          string         `json:"check_url"`
	Profile           NetworkProfile `json:"profile"`
	HTTPPort          int            `json:"http_port"`
	SuccessStreak     int            `json:"success_streak"`
	RequiredSuccesses int            `json:"required_successes"`
	InternetOpen      bool           `json:"internet_open"`

	// Verbose-only fields.
	Routes       []string     `json:"routes,omitempty"`
	Devices      []Device     `json:"devices,omitempty"`
	Links        []LinkStatus `json:"links,omitempty"`
	Host         *HostInfo    `json:"host,omitempty"`
	IPForwarding *bool        `json:"ip_forwarding,omitempty"`
}

// LinkStatus is the kernel's view of one of the daemon's interfaces.
type LinkStatus struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	State     string   `json:"state"` // up, down, missing
	Addresses []string `json:"addresses,omitempty"`
	MTU       int      `json:"mtu,omitempty"`
	TXBytes   uint64   `json:"tx_bytes"`
	RXBytes   uint64   `json:"rx_bytes"`
	TXErrors  uint64   `json:"tx_errors"`
	RXErrors  uint64   `json:"rx_errors"`
}

// HostInfo holds general system information.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	KernelVersion string `json:"kernel_version"`
	Uptime        string `json:"uptime"`
}

// Device is a row of NetworkManager's device status table.
type Device struct {
	Name       string `json:"device"`
	Type       string `json:"type"`
	State      string `json:"state"`
	Connection string `json:"connection"`
}

// Connected reports whether NetworkManager considers the device connected
// with a real connection profile bound to it.
func (d Device) Connected() bool {
	return d.State == "connected" && d.Connection != "" && d.Connection != "--"
}
