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
	"fmt"

	"github.com/vishvananda/netlink"
	"github.com/we-are-mono/provisiond/daemon/logger"
	"github.com/we-are-mono/provisiond/types"
	"golang.org/x/sys/unix"
)

// LinkSubscribeFunc subscribes ch to link updates until done is closed.
type LinkSubscribeFunc func(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error

// LinkWatcher follows netlink link events for the uplink and AP interfaces.
// Losing the AP interface while in setup is recorded as an error.
type LinkWatcher struct {
	cfg       *types.Config
	state     *State
	metrics   *Metrics
	subscribe LinkSubscribeFunc
}

// NewLinkWatcher creates a watcher backed by netlink.LinkSubscribe.
func NewLinkWatcher(cfg *types.Config, state *State, metrics *Metrics) *LinkWatcher {
	return &LinkWatcher{
		cfg:     cfg,
		state:   state,
		metrics: metrics,
		subscribe: func(ch chan<- netlink.LinkUpdate, done <-chan struct{}) error {
			return netlink.LinkSubscribe(ch, done)
		},
	}
}

// Run processes link events until ctx is done.
func (w *LinkWatcher) Run(ctx context.Context) error {
	ch := make(chan netlink.LinkUpdate)
	done := make(chan struct{})
	defer func() {
		close(done)
		// The subscriber may still be sending; it closes ch once it sees done.
		go func() {
			for range ch {
			}
		}()
	}()

	if err := w.subscribe(ch, done); err != nil {
		logger.Error("Failed to subscribe to link events",
			logger.Field{Key: "component", Value: "linkwatcher"},
			logger.Field{Key: "error", Value: err.Error()})
		return err
	}
	logger.Info("Link watcher started",
		logger.Field{Key: "component", Value: "linkwatcher"})

	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			w.handleLinkUpdate(update)
		case <-ctx.Done():
			logger.Info("Link watcher stopped",
				logger.Field{Key: "component", Value: "linkwatcher"})
			return nil
		}
	}
}

func (w *LinkWatcher) handleLinkUpdate(update netlink.LinkUpdate) {
	if update.Link == nil {
		return
	}
	attrs := update.Link.Attrs()
	if attrs.Name != w.cfg.APInterface && attrs.Name != w.cfg.UplinkInterface {
		return
	}

	if update.Header.Type == unix.RTM_DELLINK {
		logger.Warn("Interface removed",
			logger.Field{Key: "component", Value: "linkwatcher"},
			logger.Field{Key: "interface", Value: attrs.Name})

		if attrs.Name == w.cfg.APInterface {
			failed := false
			w.state.Update(func(r *Record) {
				if r.Mode == types.ModeSetup {
					r.SetError(fmt.Sprintf("access point interface %s removed", attrs.Name))
					failed = true
				}
			})
			if failed {
				w.metrics.SetMode(types.ModeError)
			}
		}
		return
	}

	flags := update.IfInfomsg.Flags
	logger.Info("Link change detected",
		logger.Field{Key: "component", Value: "linkwatcher"},
		logger.Field{Key: "interface", Value: attrs.Name},
		logger.Field{Key: "up", Value: flags&unix.IFF_UP != 0},
		logger.Field{Key: "running", Value: flags&unix.IFF_RUNNING != 0})
}
