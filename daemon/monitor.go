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
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/system"
	"github.com/we-are-mono/provisiond/types"
)

// Monitor probes uplink connectivity on a fixed interval and performs the
// online transition once enough consecutive probes succeed.
type Monitor struct {
	cfg      *types.Config
	state    *State
	prober   system.Prober
	marker   Marker
	ap       AccessPoint
	firewall Firewall
	metrics  *Metrics
	onOnline func()
	now      func() time.Time
}

// NewMonitor creates a monitor. onOnline is called after the online
// transition when ExitOnOnline is set; it may be nil.
func NewMonitor(cfg *types.Config, state *State, c Components, metrics *Metrics, onOnline func()) *Monitor {
	return &Monitor{
		cfg:      cfg,
		state:    state,
		prober:   c.Prober,
		marker:   c.Marker,
		ap:       c.AccessPoint,
		firewall: c.Firewall,
		metrics:  metrics,
		onOnline: onOnline,
		now:      time.Now,
	}
}

// Run probes immediately and then every CheckInterval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.CheckInterval.Std()
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Connectivity monitor started",
		logger.Field{Key: "component", Value: "monitor"},
		logger.Field{Key: "interval", Value: interval.String()},
		logger.Field{Key: "url", Value: m.cfg.CheckURL})

	for {
		m.runOnce(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Connectivity monitor stopped",
				logger.Field{Key: "component", Value: "monitor"})
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context) {
	if err := m.Tick(ctx); err != nil {
		m.state.Update(func(r *Record) { r.SetError(err.Error()) })
		m.metrics.SetMode(types.ModeError)
		logger.Error("Monitor iteration failed",
			logger.Field{Key: "component", Value: "monitor"},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// Tick runs one monitor iteration. A panic inside the iteration is
// returned as an error.
func (m *Monitor) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("monitor panic: %v", r)
		}
	}()

	if m.cfg.PauseProbesWhileProvisioning && m.state.Mode() == types.ModeProvisioning {
		logger.Debug("Probe skipped while provisioning",
			logger.Field{Key: "component", Value: "monitor"})
		return nil
	}

	res := m.prober.Probe(ctx)
	now := m.now()
	m.metrics.ObserveProbe(res)

	var streak int
	var latched bool
	m.state.Update(func(r *Record) {
		r.LastProbeCode = res.Code
		r.LastProbeAt = now
		r.InternetOpen = res.Open
		if res.Open {
			r.SuccessStreak++
		} else {
			r.SuccessStreak = 0
		}
		r.AddSample(types.ProbeSample{
			At:        now,
			Code:      res.Code,
			LatencyMS: float64(res.Latency) / float64(time.Millisecond),
			Open:      res.Open,
		})
		streak = r.SuccessStreak
		latched = r.Online
	})
	m.metrics.SetStreak(streak)

	logger.Debug("Probe completed",
		logger.Field{Key: "component", Value: "monitor"},
		logger.Field{Key: "code", Value: res.Code},
		logger.Field{Key: "open", Value: res.Open},
		logger.Field{Key: "streak", Value: streak})

	if streak >= m.cfg.RequiredSuccesses && !latched {
		if err := m.goOnline(ctx, now); err != nil {
			return err
		}
	}

	m.clearError()
	return nil
}

// goOnline performs the one-time online transition.
func (m *Monitor) goOnline(ctx context.Context, now time.Time) error {
	m.state.Update(func(r *Record) {
		r.Online = true
		r.Mode = types.ModeOnline
		r.OnlineAt = now
		r.LastError = ""
	})
	m.metrics.SetMode(types.ModeOnline)
	m.metrics.ObserveOnline()

	logger.Info("Uplink is online",
		logger.Field{Key: "component", Value: "monitor"},
		logger.Field{Key: "interface", Value: m.cfg.UplinkInterface})

	var errs []error
	if wrote, err := m.marker.Write(now); err != nil {
		errs = append(errs, err)
	} else if wrote {
		logger.Info("Provisioned marker written",
			logger.Field{Key: "component", Value: "monitor"})
	}

	if m.cfg.AutoTeardown {
		if err := m.teardown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if m.cfg.ExitOnOnline && m.onOnline != nil {
		logger.Info("Exiting after online transition",
			logger.Field{Key: "component", Value: "monitor"})
		m.onOnline()
	}

	return errors.Join(errs...)
}

func (m *Monitor) teardown(ctx context.Context) error {
	var errs []error
	if err := m.ap.BringDown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("access point teardown: %w", err))
	}
	if err := m.firewall.Remove(ctx); err != nil {
		errs = append(errs, fmt.Errorf("firewall teardown: %w", err))
	}
	if len(errs) == 0 {
		logger.Info("Setup access point torn down",
			logger.Field{Key: "component", Value: "monitor"})
	}
	return errors.Join(errs...)
}

// clearError leaves the error mode after a clean iteration. last_error is kept.
func (m *Monitor) clearError() {
	var target types.Mode
	recovered := false
	m.state.Update(func(r *Record) {
		if r.Mode == types.ModeError {
			target = types.ModeSetup
			if r.Online {
				target = types.ModeOnline
			}
			r.Mode = target
			recovered = true
		}
	})
	if recovered {
		m.metrics.SetMode(target)
	}
}
