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
	"sync"
	"time"

	"github.com/we-are-mono/provisiond/system"
	"github.com/we-are-mono/provisiond/types"
)

// opLog records mutating calls across fakes in order.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

type fakeInterfaces struct {
	log *opLog
	err error
}

func (f *fakeInterfaces) Ensure(ctx context.Context, name string) error {
	f.log.add("ensure " + name)
	return f.err
}

type fakeAccessPoint struct {
	log       *opLog
	ensureErr error
	upErr     error
	downErr   error
	profile   types.NetworkProfile
}

func (f *fakeAccessPoint) EnsureProfile(ctx context.Context) error {
	f.log.add("profile")
	return f.ensureErr
}

func (f *fakeAccessPoint) BringUp(ctx context.Context) error {
	f.log.add("up")
	return f.upErr
}

func (f *fakeAccessPoint) BringDown(ctx context.Context) error {
	f.log.add("down")
	return f.downErr
}

func (f *fakeAccessPoint) Current() types.NetworkProfile {
	return f.profile
}

// loggingFirewall puts firewall calls on the shared log and delegates to a
// FirewallManager over the mock backend.
type loggingFirewall struct {
	log     *opLog
	backend *system.MockFirewallBackend
	fw      *system.FirewallManager
}

func newLoggingFirewall(log *opLog) *loggingFirewall {
	backend := system.NewMockFirewallBackend()
	return &loggingFirewall{log: log, backend: backend, fw: system.NewFirewallManager(backend)}
}

func (f *loggingFirewall) Apply(ctx context.Context, rules system.SetupRules) error {
	f.log.add("firewall apply")
	return f.fw.Apply(ctx, rules)
}

func (f *loggingFirewall) Remove(ctx context.Context) error {
	f.log.add("firewall remove")
	return f.fw.Remove(ctx)
}

type fakeUplink struct {
	log        *opLog
	networks   []types.Network
	listErr    error
	connectErr error
	devices    []types.Device
	// block, when set, holds WifiConnect until it is closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeUplink) WifiConnect(ctx context.Context, iface, ssid, password string) error {
	f.log.add("connect " + ssid + " on " + iface)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.connectErr
}

func (f *fakeUplink) WifiList(ctx context.Context, iface string) ([]types.Network, error) {
	return f.networks, f.listErr
}

func (f *fakeUplink) DeviceStatus(ctx context.Context) ([]types.Device, error) {
	return f.devices, nil
}

type fakeRoutes struct {
	log       *opLog
	adjustErr error
	routes    []string
}

func (f *fakeRoutes) Adjust(ctx context.Context) error {
	f.log.add("routes adjust")
	return f.adjustErr
}

func (f *fakeRoutes) Routes() ([]string, error) {
	return f.routes, nil
}

type fakeHost struct {
	log    *opLog
	fwdErr error
}

func (f *fakeHost) EnableIPForwarding() error {
	f.log.add("ip forward")
	return f.fwdErr
}

func (f *fakeHost) IPForwarding() (bool, error) {
	return f.fwdErr == nil, nil
}

func (f *fakeHost) Links(names ...string) []types.LinkStatus {
	out := make([]types.LinkStatus, 0, len(names))
	for _, n := range names {
		out = append(out, types.LinkStatus{Name: n, State: "up"})
	}
	return out
}

func (f *fakeHost) HostInfo() types.HostInfo {
	return types.HostInfo{Hostname: "pi", KernelVersion: "6.6.0", Uptime: "1h 0m"}
}

// fakeProber replays results, repeating the last one when exhausted.
type fakeProber struct {
	mu      sync.Mutex
	results []types.ProbeResult
	calls   int
	panics  bool
}

func (f *fakeProber) Probe(ctx context.Context) types.ProbeResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.panics {
		panic("probe exploded")
	}
	if len(f.results) == 0 {
		return closed()
	}
	i := f.calls - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i]
}

func (f *fakeProber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func open() types.ProbeResult {
	return types.ProbeResult{Code: "204", Open: true, Latency: 40 * time.Millisecond}
}

func closed() types.ProbeResult {
	return types.ProbeResult{Code: "302", Latency: 25 * time.Millisecond}
}

type fakeMarker struct {
	exists   bool
	writes   int
	err      error
	onlineAt time.Time
}

func (f *fakeMarker) Exists() bool {
	return f.exists
}

func (f *fakeMarker) Write(t time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.writes++
	f.exists = true
	f.onlineAt = t
	return true, nil
}

func (f *fakeMarker) OnlineAt() (time.Time, error) {
	return f.onlineAt, nil
}

// fixture wires a Provisioner and Monitor over fakes.
type fixture struct {
	cfg      *types.Config
	log      *opLog
	ifaces   *fakeInterfaces
	ap       *fakeAccessPoint
	firewall *loggingFirewall
	uplink   *fakeUplink
	routes   *fakeRoutes
	host     *fakeHost
	prober   *fakeProber
	marker   *fakeMarker
	metrics  *Metrics
	state    *State
	prov     *Provisioner
}

func newFixture() *fixture {
	cfg := types.DefaultConfig()
	log := &opLog{}
	f := &fixture{
		cfg:      cfg,
		log:      log,
		ifaces:   &fakeInterfaces{log: log},
		ap:       &fakeAccessPoint{log: log, profile: types.NetworkProfile{Name: "SetupAP", Interface: "ap0", SSID: "Pi-Setup", Band: "bg", Channel: "6"}},
		firewall: newLoggingFirewall(log),
		uplink:   &fakeUplink{log: log},
		routes:   &fakeRoutes{log: log},
		host:     &fakeHost{log: log},
		prober:   &fakeProber{},
		marker:   &fakeMarker{},
		metrics:  NewMetrics(),
		state:    NewState(),
	}
	f.prov = NewProvisioner(cfg, f.state, f.components(), f.metrics)
	return f
}

func (f *fixture) components() Components {
	return Components{
		Interfaces:  f.ifaces,
		AccessPoint: f.ap,
		Firewall:    f.firewall,
		Uplink:      f.uplink,
		Routes:      f.routes,
		Host:        f.host,
		Prober:      f.prober,
		Marker:      f.marker,
	}
}

func (f *fixture) monitor(onOnline func()) *Monitor {
	return NewMonitor(f.cfg, f.state, f.components(), f.metrics, onOnline)
}

func (f *fixture) setMode(mode types.Mode) {
	f.state.Update(func(r *Record) { r.Mode = mode })
}
