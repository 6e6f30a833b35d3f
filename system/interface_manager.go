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
	"fmt"
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
)

const devicePollInterval = 100 * time.Millisecond

// InterfaceManager makes sure the virtual AP interface exists on the
// uplink's radio and is known to NetworkManager.
type InterfaceManager struct {
	radio      Radio
	nm         *NMClient
	diag       *Diagnostics
	uplink     string
	deviceWait time.Duration
}

// NewInterfaceManager creates an InterfaceManager creating AP interfaces on uplink's phy.
func NewInterfaceManager(radio Radio, nm *NMClient, diag *Diagnostics, uplink string, deviceWait time.Duration) *InterfaceManager {
	return &InterfaceManager{
		radio:      radio,
		nm:         nm,
		diag:       diag,
		uplink:     uplink,
		deviceWait: deviceWait,
	}
}

// Ensure makes name exist as an AP-capable interface. An existing interface
// reporting a non-AP type is deleted and recreated; one reporting AP (or no
// type at all) is left alone. Only a failed creation is an error.
func (m *InterfaceManager) Ensure(ctx context.Context, name string) error {
	ifaces, err := m.radio.Interfaces(ctx)
	if err != nil {
		logger.Warn("Could not list wireless interfaces, assuming AP interface is absent",
			logger.Field{Key: "error", Value: err.Error()})
	}

	if existing, ok := FindRadioInterface(ifaces, name); ok {
		if existing.Type == "" || existing.IsAP() {
			logger.Debug("AP interface present",
				logger.Field{Key: "interface", Value: name},
				logger.Field{Key: "type", Value: existing.Type})
			return nil
		}

		logger.Info("AP interface has wrong type, recreating",
			logger.Field{Key: "interface", Value: name},
			logger.Field{Key: "type", Value: existing.Type})
		if err := m.radio.DeleteInterface(ctx, name); err != nil {
			logger.Warn("Failed to delete interface",
				logger.Field{Key: "interface", Value: name},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}

	logger.Info("Creating AP interface",
		logger.Field{Key: "interface", Value: name},
		logger.Field{Key: "parent", Value: m.uplink})

	if err := m.radio.AddAPInterface(ctx, m.uplink, name); err != nil {
		return &DiagnosticError{
			Op:       fmt.Sprintf("create AP interface %s on %s", name, m.uplink),
			Err:      err,
			Sections: m.diag.Radio(ctx),
		}
	}

	if err := m.nm.SetManaged(ctx, name, true); err != nil {
		logger.Warn("Failed to hand AP interface to NetworkManager",
			logger.Field{Key: "interface", Value: name},
			logger.Field{Key: "error", Value: err.Error()})
	}

	m.warnIfNotAP(ctx, name)
	m.waitForDevice(ctx, name)

	return nil
}

// warnIfNotAP re-reads the interface type after creation. Some drivers
// report "managed" until the AP profile is activated, so this only warns.
func (m *InterfaceManager) warnIfNotAP(ctx context.Context, name string) {
	ifaces, err := m.radio.Interfaces(ctx)
	if err != nil {
		return
	}
	if ifi, ok := FindRadioInterface(ifaces, name); ok && ifi.Type != "" && !ifi.IsAP() {
		logger.Warn("AP interface does not report AP type after creation",
			logger.Field{Key: "interface", Value: name},
			logger.Field{Key: "type", Value: ifi.Type})
	}
}

// waitForDevice polls NetworkManager until it lists name or the bounded wait elapses.
func (m *InterfaceManager) waitForDevice(ctx context.Context, name string) {
	if m.deviceWait <= 0 {
		return
	}

	deadline := time.NewTimer(m.deviceWait)
	defer deadline.Stop()
	ticker := time.NewTicker(devicePollInterval)
	defer ticker.Stop()

	for {
		if ok, err := m.nm.HasDevice(ctx, name); err == nil && ok {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			logger.Warn("NetworkManager did not report AP device in time",
				logger.Field{Key: "interface", Value: name},
				logger.Field{Key: "waited", Value: m.deviceWait.String()})
			return
		case <-ticker.C:
		}
	}
}
