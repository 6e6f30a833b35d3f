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

package logger

import "sync"

// Subscriber receives every entry that passes the logger's level.
// OnLogEvent must not block.
type Subscriber interface {
	OnLogEvent(entry *Entry) error
}

// Emitter fans entries out to subscribers such as streaming log clients.
type Emitter struct {
	subscribers []Subscriber
	mu          sync.RWMutex
}

// NewEmitter creates an emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{}
}

// Subscribe adds sub.
func (e *Emitter) Subscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscribers = append(e.subscribers, sub)
}

// Unsubscribe removes sub if present.
func (e *Emitter) Unsubscribe(sub Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, s := range e.subscribers {
		if s == sub {
			e.subscribers = append(e.subscribers[:i:i], e.subscribers[i+1:]...)
			return
		}
	}
}

// Len returns the number of subscribers.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers)
}

// Emit delivers entry to every subscriber in order. Subscriber errors are
// ignored so a broken client cannot affect logging.
func (e *Emitter) Emit(entry *Entry) {
	e.mu.RLock()
	subs := append([]Subscriber(nil), e.subscribers...)
	e.mu.RUnlock()

	for _, sub := range subs {
		_ = sub.OnLogEvent(entry)
	}
}
