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
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

// Metrics holds the provisioning metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Probes            *prometheus.CounterVec
	ProbeDuration     prometheus.Histogram
	SuccessStreak     prometheus.Gauge
	Mode              *prometheus.GaugeVec
	ConnectAttempts   *prometheus.CounterVec
	OnlineTransitions prometheus.Counter
}

// NewMetrics registers the provisioning metrics on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.Probes = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_probes_total",
		Help: "Connectivity probes by result",
	}, []string{"result"})

	m.ProbeDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "provisiond_probe_duration_seconds",
		Help:    "Latency of connectivity probes",
		Buckets: prometheus.DefBuckets,
	})

	m.SuccessStreak = factory.NewGauge(prometheus.GaugeOpts{
		Name: "provisiond_success_streak",
		Help: "Consecutive open probes",
	})

	m.Mode = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "provisiond_mode",
		Help: "Current provisioning mode (1 for the active mode)",
	}, []string{"mode"})

	m.ConnectAttempts = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "provisiond_connect_attempts_total",
		Help: "Connect requests by result",
	}, []string{"result"})

	m.OnlineTransitions = factory.NewCounter(prometheus.CounterOpts{
		Name: "provisiond_online_transitions_total",
		Help: "Transitions to the online mode",
	})

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveProbe records one probe outcome.
func (m *Metrics) ObserveProbe(res types.ProbeResult) {
	if m == nil {
		return
	}
	result := "closed"
	switch {
	case res.Open:
		result = "open"
	case res.Error != "":
		result = "error"
	}
	m.Probes.WithLabelValues(result).Inc()
	m.ProbeDuration.Observe(res.Latency.Seconds())
}

// SetStreak records the current success streak.
func (m *Metrics) SetStreak(n int) {
	if m == nil {
		return
	}
	m.SuccessStreak.Set(float64(n))
}

// SetMode marks mode as the active one.
func (m *Metrics) SetMode(mode types.Mode) {
	if m == nil {
		return
	}
	for _, known := range types.Modes {
		v := 0.0
		if known == mode {
			v = 1
		}
		m.Mode.WithLabelValues(string(known)).Set(v)
	}
}

// ObserveConnect records a connect attempt; result is success, rejected or failed.
func (m *Metrics) ObserveConnect(result string) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

// ObserveOnline records the online transition.
func (m *Metrics) ObserveOnline() {
	if m == nil {
		return
	}
	m.OnlineTransitions.Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listener started",
		logger.Field{Key: "component", Value: "metrics"},
		logger.Field{Key: "addr", Value: ln.Addr().String()})

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
