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
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/we-are-mono/provisiond/types"
	"golang.org/x/sys/unix"
)

// ProbeCodeTransportError is reported when no HTTP response was received.
const ProbeCodeTransportError = "000"

// Prober performs a single connectivity check.
type Prober interface {
	Probe(ctx context.Context) types.ProbeResult
}

// HTTPProber issues a GET against a connectivity-check URL with the socket
// bound to one interface. Only a 204 counts as open internet; captive
// portals answer with a redirect or a login page instead.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober bound to iface. An empty iface leaves the
// route choice to the kernel.
func NewHTTPProber(url, iface string, timeout time.Duration) *HTTPProber {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: bindToDevice(iface),
	}

	return &HTTPProber{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				DisableKeepAlives: true,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe runs one check. It never returns an error: failures are folded
// into a closed result.
func (p *HTTPProber) Probe(ctx context.Context) types.ProbeResult {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return types.ProbeResult{Code: ProbeCodeTransportError, Error: err.Error()}
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.ProbeResult{
			Code:    ProbeCodeTransportError,
			Error:   err.Error(),
			Latency: time.Since(start),
		}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return types.ProbeResult{
		Code:    strconv.Itoa(resp.StatusCode),
		Latency: time.Since(start),
		Open:    resp.StatusCode == http.StatusNoContent,
	}
}

func bindToDevice(iface string) func(network, address string, c syscall.RawConn) error {
	if iface == "" {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface)
		}); err != nil {
			return err
		}
		return sockErr
	}
}
