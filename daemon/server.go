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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/we-are-mono/provisiond/daemon/logger"
)

// requestReadTimeout bounds how long a client may take to send its request.
const requestReadTimeout = 10 * time.Second

type handlerFunc func(ctx context.Context, req Request) Response

// Server answers Request lines on a Unix socket.
type Server struct {
	socketPath string
	prov       *Provisioner
	handlers   map[string]handlerFunc

	listener net.Listener
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewServer creates a server for prov on socketPath.
func NewServer(socketPath string, prov *Provisioner) *Server {
	s := &Server{
		socketPath: socketPath,
		prov:       prov,
		done:       make(chan struct{}),
	}
	s.handlers = map[string]handlerFunc{
		CommandStatus:  s.handleStatus,
		CommandScan:    s.handleScan,
		CommandConnect: s.handleConnect,
		CommandProbe:   s.handleProbe,
	}
	return s
}

// Listen binds the socket, replacing a stale one.
func (s *Server) Listen() error {
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0660); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.listener = listener
	logger.Info("Listening",
		logger.Field{Key: "component", Value: "server"},
		logger.Field{Key: "socket", Value: s.socketPath})
	return nil
}

// Serve accepts connections until Stop is called or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.done:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				s.wg.Wait()
				return nil
			default:
				logger.Error("Accept error",
					logger.Field{Key: "component", Value: "server"},
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// Stop closes the listener and removes the socket file.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		if s.listener != nil {
			err = s.listener.Close()
		}
		os.Remove(s.socketPath)
	})
	return err
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(requestReadTimeout))
	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return
	}
	conn.SetReadDeadline(time.Time{})

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendResponse(conn, Response{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
			Code:    http.StatusBadRequest,
		})
		return
	}

	// Streaming keeps the connection open until the client goes away.
	if req.Command == CommandLogsSubscribe {
		s.handleLogsSubscribe(ctx, conn, req.LogFilter)
		return
	}

	s.sendResponse(conn, s.handleRequest(ctx, req))
}

func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	handler, exists := s.handlers[req.Command]
	if !exists {
		return Response{
			Success: false,
			Error:   fmt.Sprintf("unknown command: %s", req.Command),
			Code:    http.StatusBadRequest,
		}
	}

	logger.Debug("Request",
		logger.Field{Key: "component", Value: "server"},
		logger.Field{Key: "command", Value: req.Command},
		logger.Field{Key: "ssid", Value: req.SSID})
	return handler(ctx, req)
}

func (s *Server) sendResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Failed to marshal response",
			logger.Field{Key: "component", Value: "server"},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}
	conn.Write(append(data, '\n'))
}

func errorResponse(err error) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Code:    StatusCode(err),
	}
}

func (s *Server) handleStatus(ctx context.Context, req Request) Response {
	return Response{
		Success: true,
		Data:    s.prov.Status(ctx, req.Verbose),
	}
}

func (s *Server) handleScan(ctx context.Context, req Request) Response {
	networks, err := s.prov.Scan(ctx)
	if err != nil {
		return errorResponse(err)
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("%d networks found", len(networks)),
		Data:    networks,
	}
}

func (s *Server) handleConnect(ctx context.Context, req Request) Response {
	if err := s.prov.Connect(ctx, req.SSID, req.Password); err != nil {
		return errorResponse(err)
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("Connected to %s", req.SSID),
	}
}

func (s *Server) handleProbe(ctx context.Context, req Request) Response {
	report := ProbeReport{Result: s.prov.Probe(ctx)}
	if req.History {
		report.History = s.prov.State().Snapshot().History
	}
	return Response{Success: true, Data: report}
}

// handleLogsSubscribe streams log entries to conn until the client
// disconnects or ctx is done.
func (s *Server) handleLogsSubscribe(ctx context.Context, conn net.Conn, filter *LogFilter) {
	emitter := logger.GetEmitter()
	if emitter == nil {
		s.sendResponse(conn, Response{
			Success: false,
			Error:   "log streaming is not available",
			Code:    http.StatusServiceUnavailable,
		})
		return
	}

	sub := NewSocketLogSubscriber(conn, filter)
	emitter.Subscribe(sub)
	defer func() {
		emitter.Unsubscribe(sub)
		sub.Close()
	}()

	logger.Info("Client subscribed to log stream",
		logger.Field{Key: "component", Value: "server"})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	select {
	case <-closed:
	case <-ctx.Done():
	case <-s.done:
	}
}
