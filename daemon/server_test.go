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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
)

func startServer(t *testing.T, prov *Provisioner) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "pd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s.sock")

	srv := NewServer(sock, prov)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return sock
}

func roundTrip(t *testing.T, sock string, raw []byte) Response {
	t.Helper()

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(append(raw, '\n'))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func send(t *testing.T, sock string, req Request) Response {
	t.Helper()
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return roundTrip(t, sock, raw)
}

func decodeData(t *testing.T, resp Response, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestServerStatus(t *testing.T) {
	f := newFixture()
	f.setMode(types.ModeSetup)
	sock := startServer(t, f.prov)

	resp := send(t, sock, Request{Command: CommandStatus})
	require.True(t, resp.Success)

	var st types.DaemonStatus
	decodeData(t, resp, &st)
	assert.Equal(t, types.ModeSetup, st.Mode)
	assert.Equal(t, "Pi-Setup", st.SetupSSID)
	assert.Empty(t, st.Routes)

	resp = send(t, sock, Request{Command: CommandStatus, Verbose: true})
	decodeData(t, resp, &st)
	assert.NotNil(t, st.Host)
}

func TestServerStatusNeverEchoesPassphrase(t *testing.T) {
	f := newFixture()
	f.ap.profile.Passphrase = "setup1234"
	sock := startServer(t, f.prov)

	raw, err := json.Marshal(send(t, sock, Request{Command: CommandStatus, Verbose: true}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "setup1234")
}

func TestServerScan(t *testing.T) {
	f := newFixture()
	f.uplink.networks = []types.Network{{SSID: "A", Signal: 10}, {SSID: "A", Signal: 30}, {SSID: "B", Signal: 20}}
	sock := startServer(t, f.prov)

	resp := send(t, sock, Request{Command: CommandScan})
	require.True(t, resp.Success)

	var networks []types.Network
	decodeData(t, resp, &networks)
	assert.Equal(t, []types.Network{{SSID: "A", Signal: 30}, {SSID: "B", Signal: 20}}, networks)
}

func TestServerScanFailure(t *testing.T) {
	f := newFixture()
	f.uplink.listErr = errors.New("wifi scan failed")
	sock := startServer(t, f.prov)

	resp := send(t, sock, Request{Command: CommandScan})
	assert.False(t, resp.Success)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Error, "wifi scan failed")
}

func TestServerConnect(t *testing.T) {
	tests := []struct {
		name     string
		mode     types.Mode
		req      Request
		wantOK   bool
		wantCode int
	}{
		{name: "success", mode: types.ModeSetup, req: Request{Command: CommandConnect, SSID: "Home", Password: "secret"}, wantOK: true},
		{name: "missing ssid", mode: types.ModeSetup, req: Request{Command: CommandConnect}, wantCode: http.StatusBadRequest},
		{name: "already online", mode: types.ModeOnline, req: Request{Command: CommandConnect, SSID: "Home"}, wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.setMode(tt.mode)
			sock := startServer(t, f.prov)

			resp := send(t, sock, tt.req)
			assert.Equal(t, tt.wantOK, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
			if !tt.wantOK {
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestServerProbe(t *testing.T) {
	f := newFixture()
	f.prober.results = []types.ProbeResult{open()}
	f.state.Update(func(r *Record) {
		r.AddSample(types.ProbeSample{Code: "302", LatencyMS: 12})
	})
	sock := startServer(t, f.prov)

	var report ProbeReport
	decodeData(t, send(t, sock, Request{Command: CommandProbe}), &report)
	assert.Equal(t, "204", report.Result.Code)
	assert.True(t, report.Result.Open)
	assert.Empty(t, report.History)

	decodeData(t, send(t, sock, Request{Command: CommandProbe, History: true}), &report)
	require.Len(t, report.History, 1)
	assert.Equal(t, "302", report.History[0].Code)
}

func TestServerInvalidRequests(t *testing.T) {
	f := newFixture()
	sock := startServer(t, f.prov)

	resp := roundTrip(t, sock, []byte("{not json"))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "invalid request")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = send(t, sock, Request{Command: "reboot"})
	assert.False(t, resp.Success)
	assert.Equal(t, "unknown command: reboot", resp.Error)
}

func TestServerDoesNotLogPassword(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(logger.Config{Level: "debug"}, []logger.Backend{logger.NewWriterBackend(&buf, "text")}, nil)
	t.Cleanup(func() { logger.Close() })

	f := newFixture()
	f.setMode(types.ModeSetup)
	f.uplink.connectErr = errors.New("connect failed")
	sock := startServer(t, f.prov)

	send(t, sock, Request{Command: CommandConnect, SSID: "Home", Password: "hunter22"})
	assert.Contains(t, buf.String(), "Home")
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestServerStopRemovesSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "pd")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "s.sock")

	// A stale socket file is replaced.
	require.NoError(t, os.WriteFile(sock, nil, 0600))

	srv := NewServer(sock, newFixture().prov)
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	require.NoError(t, srv.Stop())
	require.NoError(t, <-done)
	assert.NoError(t, srv.Stop(), "stop is idempotent")

	_, err = os.Stat(sock)
	assert.True(t, os.IsNotExist(err))
}

func TestServerLogStream(t *testing.T) {
	em := logger.NewEmitter()
	logger.Init(logger.Config{Level: "debug"}, nil, em)
	t.Cleanup(func() { logger.Close() })

	sock := startServer(t, newFixture().prov)

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer conn.Close()

	raw, _ := json.Marshal(Request{Command: CommandLogsSubscribe, LogFilter: &LogFilter{Component: "monitor"}})
	_, err = conn.Write(append(raw, '\n'))
	require.NoError(t, err)

	// Subscription happens asynchronously; keep logging until it is live.
	require.Eventually(t, func() bool { return em.Len() == 1 }, time.Second, 5*time.Millisecond)

	logger.Info("ignored", logger.Field{Key: "component", Value: "server"})
	logger.Info("probe done", logger.Field{Key: "component", Value: "monitor"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)

	var entry logger.Entry
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "probe done", entry.Message)
	assert.Equal(t, "monitor", entry.Component)
	assert.False(t, strings.Contains(line, "ignored"))
}
