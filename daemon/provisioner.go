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

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/system"
	"github.com/we-are-mono/provisiond/types"
)

// ErrAlreadyProvisioned is returned by Bootstrap when the provisioned marker
// short-circuits setup.
var ErrAlreadyProvisioned = errors.New("device already provisioned")

// RequestError is a command failure carrying an HTTP-style status code.
type RequestError struct {
	Code int
	Msg  string
	Err  error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode returns the code of a *RequestError in err's chain, or 500.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Code
	}
	return http.StatusInternalServerError
}

// InterfaceEnsurer creates the AP interface.
type InterfaceEnsurer interface {
	Ensure(ctx context.Context, name string) error
}

// AccessPoint manages the setup access point profile.
type AccessPoint interface {
	EnsureProfile(ctx context.Context) error
	BringUp(ctx context.Context) error
	BringDown(ctx context.Context) error
	Current() types.NetworkProfile
}

// Firewall installs and removes the setup NAT and filter tables.
type Firewall interface {
	Apply(ctx context.Context, rules system.SetupRules) error
	Remove(ctx context.Context) error
}

// Uplink controls the uplink wireless connection.
type Uplink interface {
	WifiConnect(ctx context.Context, iface, ssid, password string) error
	WifiList(ctx context.Context, iface string) ([]types.Network, error)
	DeviceStatus(ctx context.Context) ([]types.Device, error)
}

// RoutePriorities adjusts and lists route metrics.
type RoutePriorities interface {
	Adjust(ctx context.Context) error
	Routes() ([]string, error)
}

// Host exposes host-level networking settings.
type Host interface {
	EnableIPForwarding() error
	IPForwarding() (bool, error)
	Links(names ...string) []types.LinkStatus
	HostInfo() types.HostInfo
}

// Marker records the first online transition.
type Marker interface {
	Exists() bool
	Write(t time.Time) (bool, error)
	OnlineAt() (time.Time, error)
}

// Components bundles the system collaborators of the provisioner.
type Components struct {
	Interfaces  InterfaceEnsurer
	AccessPoint AccessPoint
	Firewall    Firewall
	Uplink      Uplink
	Routes      RoutePriorities
	Host        Host
	Prober      system.Prober
	Marker      Marker
}

// Provisioner is the provisioning state machine. Network mutations are
// serialized through the mode stored in State.
type Provisioner struct {
	cfg     *types.Config
	state   *State
	c       Components
	metrics *Metrics
	now     func() time.Time
}

// NewProvisioner wires the state machine. metrics may be nil.
func NewProvisioner(cfg *types.Config, state *State, c Components, metrics *Metrics) *Provisioner {
	return &Provisioner{
		cfg:     cfg,
		state:   state,
		c:       c,
		metrics: metrics,
		now:     time.Now,
	}
}

// State returns the shared daemon state.
func (p *Provisioner) State() *State {
	return p.state
}

func (p *Provisioner) setMode(mode types.Mode) {
	p.state.Update(func(r *Record) { r.Mode = mode })
	p.metrics.SetMode(mode)
}

func (p *Provisioner) setError(err error) {
	p.state.Update(func(r *Record) { r.SetError(err.Error()) })
	p.metrics.SetMode(types.ModeError)
}

// setupRules returns the firewall rules for the configured interfaces.
func (p *Provisioner) setupRules() system.SetupRules {
	return system.SetupRules{
		APInterface:     p.cfg.APInterface,
		UplinkInterface: p.cfg.UplinkInterface,
		DNSPort:         p.cfg.DNSPort,
		CaptivePort:     p.cfg.CaptiveHTTPPort,
	}
}

// Bootstrap brings the device into setup mode. With the provisioned marker
// present (and setup not forced) it touches nothing, reports online and
// returns ErrAlreadyProvisioned.
func (p *Provisioner) Bootstrap(ctx context.Context) error {
	if p.cfg.SkipIfProvisioned && !p.cfg.ForceSetup && p.c.Marker.Exists() {
		onlineAt, err := p.c.Marker.OnlineAt()
		if err != nil {
			logger.Warn("Could not read provisioned marker",
				logger.Field{Key: "component", Value: "provisioner"},
				logger.Field{Key: "error", Value: err.Error()})
		}
		p.state.Update(func(r *Record) {
			r.Online = true
			r.Mode = types.ModeOnline
			r.InternetOpen = true
			r.OnlineAt = onlineAt
		})
		p.metrics.SetMode(types.ModeOnline)
		logger.Info("Provisioned marker present, skipping setup",
			logger.Field{Key: "component", Value: "provisioner"})
		return ErrAlreadyProvisioned
	}

	p.setMode(types.ModeStarting)

	if err := p.c.Host.EnableIPForwarding(); err != nil {
		logger.Warn("Failed to enable IP forwarding",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}

	var routeErr error
	if err := p.c.Routes.Adjust(ctx); err != nil {
		routeErr = fmt.Errorf("route metrics: %w", err)
		logger.Warn("Failed to adjust route metrics",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}

	if err := p.bringUpSetup(ctx); err != nil {
		p.rollback()
		p.setError(err)
		return err
	}

	p.state.Update(func(r *Record) {
		r.Mode = types.ModeSetup
		if routeErr != nil {
			r.LastError = routeErr.Error()
		}
	})
	p.metrics.SetMode(types.ModeSetup)

	profile := p.c.AccessPoint.Current()
	logger.Info("Setup access point ready",
		logger.Field{Key: "component", Value: "provisioner"},
		logger.Field{Key: "ssid", Value: profile.SSID},
		logger.Field{Key: "interface", Value: profile.Interface},
		logger.Field{Key: "band", Value: profile.Band},
		logger.Field{Key: "channel", Value: profile.Channel})
	return nil
}

func (p *Provisioner) bringUpSetup(ctx context.Context) error {
	if err := p.c.Interfaces.Ensure(ctx, p.cfg.APInterface); err != nil {
		return err
	}
	if err := p.c.AccessPoint.EnsureProfile(ctx); err != nil {
		return err
	}
	if err := p.c.AccessPoint.BringUp(ctx); err != nil {
		return err
	}
	return p.c.Firewall.Apply(ctx, p.setupRules())
}

// rollback undoes a partial bootstrap. Failures are logged only.
func (p *Provisioner) rollback() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CommandTimeout.Std())
	defer cancel()

	if err := p.c.Firewall.Remove(ctx); err != nil {
		logger.Warn("Rollback: failed to remove setup firewall",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
	if err := p.c.AccessPoint.BringDown(ctx); err != nil {
		logger.Warn("Rollback: failed to bring access point down",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// Connect joins ssid on the uplink, re-tunes the AP to the uplink's channel
// and bounces it. The mode is never left at provisioning.
func (p *Provisioner) Connect(ctx context.Context, ssid, password string) error {
	ssid = strings.TrimSpace(ssid)
	if ssid == "" {
		p.metrics.ObserveConnect("rejected")
		return &RequestError{Code: http.StatusBadRequest, Msg: "ssid is required"}
	}

	observed, ok := p.state.CompareAndSwap(
		[]types.Mode{types.ModeProvisioning, types.ModeOnline},
		func(r *Record) { r.Mode = types.ModeProvisioning },
	)
	if !ok {
		p.metrics.ObserveConnect("rejected")
		return &RequestError{Code: http.StatusConflict, Msg: fmt.Sprintf("cannot connect while %s", observed)}
	}
	p.metrics.SetMode(types.ModeProvisioning)

	logger.Info("Connecting uplink",
		logger.Field{Key: "component", Value: "provisioner"},
		logger.Field{Key: "ssid", Value: ssid},
		logger.Field{Key: "interface", Value: p.cfg.UplinkInterface})

	if err := p.connect(ctx, ssid, password); err != nil {
		p.setError(err)
		p.metrics.ObserveConnect("failed")
		logger.Error("Connect failed",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "ssid", Value: ssid},
			logger.Field{Key: "error", Value: err.Error()})
		return &RequestError{Code: http.StatusInternalServerError, Msg: "connect failed", Err: err}
	}

	p.state.Update(func(r *Record) {
		r.Mode = types.ModeSetup
		r.LastError = ""
	})
	p.metrics.SetMode(types.ModeSetup)
	p.metrics.ObserveConnect("success")
	return nil
}

func (p *Provisioner) connect(ctx context.Context, ssid, password string) error {
	if err := p.c.Uplink.WifiConnect(ctx, p.cfg.UplinkInterface, ssid, password); err != nil {
		return err
	}
	if err := p.c.AccessPoint.EnsureProfile(ctx); err != nil {
		return err
	}

	// The bounce re-applies the new channel; the uplink is already joined.
	if err := p.c.AccessPoint.BringDown(ctx); err != nil {
		logger.Warn("Access point bounce: down failed",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
	if err := p.c.AccessPoint.BringUp(ctx); err != nil {
		logger.Warn("Access point bounce: up failed",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

// Scan lists visible networks, one entry per SSID with its strongest
// signal, strongest first.
func (p *Provisioner) Scan(ctx context.Context) ([]types.Network, error) {
	networks, err := p.c.Uplink.WifiList(ctx, p.cfg.UplinkInterface)
	if err != nil {
		p.state.Update(func(r *Record) { r.LastError = err.Error() })
		return nil, err
	}
	return DedupeNetworks(networks), nil
}

// DedupeNetworks keeps the highest-signal entry per SSID and sorts the
// result by signal descending, then SSID.
func DedupeNetworks(networks []types.Network) []types.Network {
	best := make(map[string]types.Network, len(networks))
	for _, n := range networks {
		if strings.TrimSpace(n.SSID) == "" {
			continue
		}
		if cur, ok := best[n.SSID]; !ok || n.Signal > cur.Signal {
			best[n.SSID] = n
		}
	}

	out := make([]types.Network, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Signal != out[j].Signal {
			return out[i].Signal > out[j].Signal
		}
		return out[i].SSID < out[j].SSID
	})
	return out
}

// Status returns a snapshot of the daemon. verbose adds routes, devices,
// links and host information; collection failures there are logged only.
func (p *Provisioner) Status(ctx context.Context, verbose bool) types.DaemonStatus {
	rec := p.state.Snapshot()

	st := types.DaemonStatus{
		Mode:              rec.Mode,
		LastError:         rec.LastError,
		LastProbeCode:     rec.LastProbeCode,
		UplinkInterface:   p.cfg.UplinkInterface,
		APInterface:       p.cfg.APInterface,
		SetupSSID:         p.cfg.SetupSSID,
		CheckURL:          p.cfg.CheckURL,
		Profile:           p.c.AccessPoint.Current(),
		HTTPPort:          p.cfg.HTTPPort,
		SuccessStreak:     rec.SuccessStreak,
		RequiredSuccesses: p.cfg.RequiredSuccesses,
		InternetOpen:      rec.InternetOpen,
	}
	if !rec.LastProbeAt.IsZero() {
		at := rec.LastProbeAt
		st.LastProbeAt = &at
	}
	if !rec.OnlineAt.IsZero() {
		at := rec.OnlineAt
		st.OnlineAt = &at
	}

	if !verbose {
		return st
	}

	if routes, err := p.c.Routes.Routes(); err == nil {
		st.Routes = routes
	} else {
		logger.Warn("Failed to list routes",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
	if devices, err := p.c.Uplink.DeviceStatus(ctx); err == nil {
		st.Devices = devices
	} else {
		logger.Warn("Failed to read device status",
			logger.Field{Key: "component", Value: "provisioner"},
			logger.Field{Key: "error", Value: err.Error()})
	}
	st.Links = p.c.Host.Links(p.cfg.UplinkInterface, p.cfg.APInterface)
	host := p.c.Host.HostInfo()
	st.Host = &host
	if fwd, err := p.c.Host.IPForwarding(); err == nil {
		st.IPForwarding = &fwd
	}
	return st
}

// Probe runs an on-demand connectivity check. It does not affect the
// success streak.
func (p *Provisioner) Probe(ctx context.Context) types.ProbeResult {
	return p.c.Prober.Probe(ctx)
}
