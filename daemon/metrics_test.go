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
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/types"
)

func TestMetricsObserveProbe(t *testing.T) {
	m := NewMetrics()
	m.ObserveProbe(types.ProbeResult{Code: "204", Open: true, Latency: 30 * time.Millisecond})
	m.ObserveProbe(types.ProbeResult{Code: "302"})
	m.ObserveProbe(types.ProbeResult{Code: "000", Error: "dial tcp: i/o timeout"})
	m.ObserveProbe(types.ProbeResult{Code: "204", Open: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Probes.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Probes.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProbeDuration))
}

func TestMetricsSetMode(t *testing.T) {
	m := NewMetrics()
	m.SetMode(types.ModeSetup)
	m.SetMode(types.ModeOnline)

	for _, mode := range types.Modes {
		want := 0.0
		if mode == types.ModeOnline {
			want = 1
		}
		assert.Equal(t, want, testutil.ToFloat64(m.Mode.WithLabelValues(string(mode))), string(mode))
	}
}

func TestMetricsNilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProbe(types.ProbeResult{})
		m.SetStreak(3)
		m.SetMode(types.ModeSetup)
		m.ObserveConnect("success")
		m.ObserveOnline()
	})
	assert.Nil(t, m.Registry())
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveConnect("rejected")
	m.SetStreak(2)

	err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP provisiond_connect_attempts_total Connect requests by result
# TYPE provisiond_connect_attempts_total counter
provisiond_connect_attempts_total{result="rejected"} 1
# HELP provisiond_success_streak Consecutive open probes
# TYPE provisiond_success_streak gauge
provisiond_success_streak 2
`), "provisiond_connect_attempts_total", "provisiond_success_streak")
	assert.NoError(t, err)
}

func TestMetricsServe(t *testing.T) {
	m := NewMetrics()
	m.ObserveOnline()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, body, "provisiond_online_transitions_total 1")

	cancel()
	assert.NoError(t, <-done)
}
