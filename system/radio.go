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
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mdlayher/wifi"
	"github.com/we-are-mono/provisiond/daemon/logger"
)

// RadioInterface is a wireless interface as reported by nl80211 or iw.
type RadioInterface struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	FrequencyMHz int    `json:"frequency_mhz,omitempty"`
	Channel      int    `json:"channel,omitempty"`
}

// IsAP reports whether the interface operates as an access point.
func (r RadioInterface) IsAP() bool {
	return IsAPType(r.Type)
}

// IsAPType reports whether an interface type string denotes AP mode.
// Both nl80211 ("AP") and iw's creation alias ("__ap") are accepted.
func IsAPType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "ap", "__ap":
		return true
	default:
		return false
	}
}

// Radio abstracts wireless interface inspection and creation.
type Radio interface {
	Interfaces(ctx context.Context) ([]RadioInterface, error)
	AddAPInterface(ctx context.Context, parent, name string) error
	DeleteInterface(ctx context.Context, name string) error
	// Listing returns the raw interface listing for diagnostics.
	Listing(ctx context.Context) (string, error)
}

// InterfaceLister lists wireless interfaces over nl80211.
type InterfaceLister func() ([]RadioInterface, error)

// IwRadio reads interfaces over nl80211 (falling back to parsing iw output)
// and creates or deletes virtual interfaces with iw.
type IwRadio struct {
	exec    executor
	nl80211 InterfaceLister
}

// NewIwRadio creates a Radio. When nl80211 is nil only iw output is used.
func NewIwRadio(runner CommandRunner, timeout time.Duration, nl80211 InterfaceLister) *IwRadio {
	return &IwRadio{
		exec:    executor{runner: runner, timeout: timeout},
		nl80211: nl80211,
	}
}

// NewDefaultRadio creates a Radio backed by mdlayher/wifi and the iw binary.
func NewDefaultRadio(runner CommandRunner, timeout time.Duration) *IwRadio {
	return NewIwRadio(runner, timeout, ListNL80211Interfaces)
}

// Interfaces lists wireless interfaces.
func (r *IwRadio) Interfaces(ctx context.Context) ([]RadioInterface, error) {
	if r.nl80211 != nil {
		ifaces, err := r.nl80211()
		if err == nil {
			return ifaces, nil
		}
		logger.Debug("nl80211 listing unavailable, parsing iw output",
			logger.Field{Key: "error", Value: err.Error()})
	}

	out, err := r.exec.run(ctx, "iw", "dev")
	if err != nil {
		return nil, fmt.Errorf("failed to list wireless interfaces: %w", err)
	}
	return ParseIwDev(string(out)), nil
}

// AddAPInterface creates name as an AP-type virtual interface on parent's phy.
func (r *IwRadio) AddAPInterface(ctx context.Context, parent, name string) error {
	_, err := r.exec.run(ctx, "iw", "dev", parent, "interface", "add", name, "type", "__ap")
	return err
}

// DeleteInterface removes a virtual wireless interface.
func (r *IwRadio) DeleteInterface(ctx context.Context, name string) error {
	_, err := r.exec.run(ctx, "iw", "dev", name, "del")
	return err
}

// Listing returns the output of "iw dev".
func (r *IwRadio) Listing(ctx context.Context) (string, error) {
	out, err := r.exec.run(ctx, "iw", "dev")
	return string(out), err
}

// ListNL80211Interfaces lists wireless interfaces through the nl80211
// generic netlink family.
func ListNL80211Interfaces() ([]RadioInterface, error) {
	c, err := wifi.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open nl80211: %w", err)
	}
	defer c.Close()

	ifis, err := c.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list nl80211 interfaces: %w", err)
	}

	var ifaces []RadioInterface
	for _, ifi := range ifis {
		if ifi.Name == "" {
			continue
		}
		ifaces = append(ifaces, RadioInterface{
			Name:         ifi.Name,
			Type:         nl80211TypeName(ifi.Type),
			FrequencyMHz: ifi.Frequency,
			Channel:      FrequencyToChannel(ifi.Frequency),
		})
	}
	return ifaces, nil
}

// nl80211TypeName maps nl80211 interface types onto the names iw prints.
func nl80211TypeName(t wifi.InterfaceType) string {
	switch t {
	case wifi.InterfaceTypeAP:
		return "AP"
	case wifi.InterfaceTypeStation:
		return "managed"
	case wifi.InterfaceTypeMonitor:
		return "monitor"
	case wifi.InterfaceTypeAdHoc:
		return "IBSS"
	default:
		return t.String()
	}
}

// ParseIwDev parses "iw dev" (or "iw dev <if> info") output.
func ParseIwDev(out string) []RadioInterface {
	var ifaces []RadioInterface
	var cur *RadioInterface

	flush := func() {
		if cur != nil {
			ifaces = append(ifaces, *cur)
			cur = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "Interface":
			flush()
			cur = &RadioInterface{Name: fields[1]}
		case "type":
			if cur != nil {
				cur.Type = fields[1]
			}
		case "channel":
			if cur == nil {
				continue
			}
			if ch, err := strconv.Atoi(fields[1]); err == nil {
				cur.Channel = ch
			}
			if len(fields) >= 3 {
				mhz := strings.TrimPrefix(fields[2], "(")
				if f, err := strconv.Atoi(mhz); err == nil {
					cur.FrequencyMHz = f
				}
			}
		}
	}
	flush()

	return ifaces
}

// FrequencyToChannel converts a centre frequency in MHz to an IEEE 802.11
// channel number. Unknown frequencies map to 0.
func FrequencyToChannel(mhz int) int {
	switch {
	case mhz == 2484:
		return 14
	case mhz >= 2412 && mhz <= 2472:
		return (mhz - 2407) / 5
	case mhz >= 5160 && mhz <= 5885:
		return (mhz - 5000) / 5
	case mhz >= 5955 && mhz <= 7115:
		return (mhz - 5950) / 5
	default:
		return 0
	}
}

// BandForFrequency returns the NetworkManager band for a frequency:
// "a" at or above 4900 MHz, "bg" below.
func BandForFrequency(mhz int) string {
	if mhz >= 4900 {
		return "a"
	}
	return "bg"
}

// FindRadioInterface returns the interface called name, if listed.
func FindRadioInterface(ifaces []RadioInterface, name string) (RadioInterface, bool) {
	for _, ifi := range ifaces {
		if ifi.Name == name {
			return ifi, true
		}
	}
	return RadioInterface{}, false
}
