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
	"sync"

	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

// ProfileManager owns the NetworkManager profile of the setup access point.
type ProfileManager struct {
	nm    *NMClient
	radio Radio
	diag  *Diagnostics
	cfg   *types.Config

	mu      sync.Mutex
	current types.NetworkProfile
}

// NewProfileManager creates a ProfileManager for cfg's access point settings.
func NewProfileManager(nm *NMClient, radio Radio, diag *Diagnostics, cfg *types.Config) *ProfileManager {
	return &ProfileManager{
		nm:    nm,
		radio: radio,
		diag:  diag,
		cfg:   cfg,
	}
}

// Current returns the profile as last applied.
func (m *ProfileManager) Current() types.NetworkProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// EnsureProfile creates the AP profile if needed and (re)applies its
// settings. The channel follows the uplink unless forced; a rejected channel
// falls back to bg/6.
func (m *ProfileManager) EnsureProfile(ctx context.Context) error {
	exists, err := m.nm.HasConnection(ctx, m.cfg.APConnectionName)
	if err != nil {
		return fmt.Errorf("failed to look up profile %s: %w", m.cfg.APConnectionName, err)
	}

	if !exists {
		logger.Info("Creating access point profile",
			logger.Field{Key: "profile", Value: m.cfg.APConnectionName},
			logger.Field{Key: "interface", Value: m.cfg.APInterface})
		if err := m.nm.AddWifiConnection(ctx, m.cfg.APInterface, m.cfg.APConnectionName, m.cfg.SetupSSID); err != nil {
			return err
		}
	}

	band, channel := m.chooseChannel(ctx)
	err = m.apply(ctx, band, channel)
	if errors.Is(err, ErrChannelRejected) && !isFallback(band, channel) {
		logger.Warn("Channel rejected, falling back",
			logger.Field{Key: "band", Value: band},
			logger.Field{Key: "channel", Value: channel},
			logger.Field{Key: "fallback", Value: types.FallbackBand + "/" + types.FallbackChannel})
		err = m.apply(ctx, types.FallbackBand, types.FallbackChannel)
	}
	if err != nil {
		return fmt.Errorf("failed to configure access point profile: %w", err)
	}

	return nil
}

// chooseChannel picks the forced band/channel when both are set, else the
// uplink's current channel, else the fallback.
func (m *ProfileManager) chooseChannel(ctx context.Context) (string, string) {
	if m.cfg.APForceBand != "" && m.cfg.APForceChannel != "" {
		return m.cfg.APForceBand, m.cfg.APForceChannel
	}

	band, channel := types.FallbackBand, types.FallbackChannel
	if ifaces, err := m.radio.Interfaces(ctx); err == nil {
		if uplink, ok := FindRadioInterface(ifaces, m.cfg.UplinkInterface); ok && uplink.FrequencyMHz > 0 && uplink.Channel > 0 {
			band = BandForFrequency(uplink.FrequencyMHz)
			channel = strconv.Itoa(uplink.Channel)
		}
	}

	return band, channel
}

func (m *ProfileManager) apply(ctx context.Context, band, channel string) error {
	err := m.nm.ModifyConnection(ctx, m.cfg.APConnectionName,
		"connection.interface-name", m.cfg.APInterface,
		"802-11-wireless.ssid", m.cfg.SetupSSID,
		"802-11-wireless.mode", "ap",
		"ipv4.method", "shared",
		"ipv4.addresses", m.cfg.APIPv4CIDR,
		"wifi-sec.key-mgmt", "wpa-psk",
		"wifi-sec.psk", m.cfg.SetupPSK,
		"802-11-wireless.band", band,
		"802-11-wireless.channel", channel,
	)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.current = types.NetworkProfile{
		Name:           m.cfg.APConnectionName,
		Interface:      m.cfg.APInterface,
		SSID:           m.cfg.SetupSSID,
		Passphrase:     m.cfg.SetupPSK,
		Band:           band,
		Channel:        channel,
		AddressingMode: "shared",
		GatewayCIDR:    m.cfg.APIPv4CIDR,
	}
	m.mu.Unlock()

	logger.Info("Access point profile applied",
		logger.Field{Key: "profile", Value: m.cfg.APConnectionName},
		logger.Field{Key: "band", Value: band},
		logger.Field{Key: "channel", Value: channel})
	return nil
}

// BringUp activates the AP profile and verifies it is bound to the AP
// interface. Failures carry a diagnostic snapshot.
func (m *ProfileManager) BringUp(ctx context.Context) error {
	err := m.nm.Up(ctx, m.cfg.APConnectionName)
	if errors.Is(err, ErrChannelRejected) {
		cur := m.Current()
		if !isFallback(cur.Band, cur.Channel) {
			logger.Warn("Channel rejected on activation, retrying with fallback",
				logger.Field{Key: "band", Value: cur.Band},
				logger.Field{Key: "channel", Value: cur.Channel})
			if err = m.apply(ctx, types.FallbackBand, types.FallbackChannel); err == nil {
				err = m.nm.Up(ctx, m.cfg.APConnectionName)
			}
		}
	}
	if err != nil {
		return m.diagnose(ctx, "activate access point", err)
	}

	if err := m.checkAPMode(ctx); err != nil {
		return m.diagnose(ctx, "verify access point mode", err)
	}

	active, _, err := m.nm.ActiveConnections(ctx)
	if err != nil {
		return m.diagnose(ctx, "verify access point activation", err)
	}
	for _, a := range active {
		if a.Name == m.cfg.APConnectionName && a.Device == m.cfg.APInterface {
			logger.Info("Access point active",
				logger.Field{Key: "profile", Value: a.Name},
				logger.Field{Key: "interface", Value: a.Device})
			return nil
		}
	}

	return m.diagnose(ctx, "verify access point activation",
		fmt.Errorf("%w: %s on %s", ErrNotActive, m.cfg.APConnectionName, m.cfg.APInterface))
}

// checkAPMode fails in strict mode when the AP interface is not in AP mode.
func (m *ProfileManager) checkAPMode(ctx context.Context) error {
	ifaces, err := m.radio.Interfaces(ctx)
	if err != nil {
		logger.Warn("Could not read AP interface type",
			logger.Field{Key: "error", Value: err.Error()})
		return nil
	}

	ifi, ok := FindRadioInterface(ifaces, m.cfg.APInterface)
	if ok && ifi.IsAP() {
		return nil
	}

	if m.cfg.StrictAPMode {
		return fmt.Errorf("%w: %s reports type %q", ErrNotAccessPoint, m.cfg.APInterface, ifi.Type)
	}
	logger.Warn("AP interface does not report AP mode",
		logger.Field{Key: "interface", Value: m.cfg.APInterface},
		logger.Field{Key: "type", Value: ifi.Type})
	return nil
}

// BringDown deactivates the AP profile. An inactive profile is not an error.
func (m *ProfileManager) BringDown(ctx context.Context) error {
	return m.nm.Down(ctx, m.cfg.APConnectionName)
}

func (m *ProfileManager) diagnose(ctx context.Context, op string, err error) error {
	return &DiagnosticError{Op: op, Err: err, Sections: m.diag.Full(ctx)}
}

func isFallback(band, channel string) bool {
	return band == types.FallbackBand && channel == types.FallbackChannel
}
