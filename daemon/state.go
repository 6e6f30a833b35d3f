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
	"sync"
	"time"

	"github.com/we-are-mono/provisiond/types"
)

// HistorySize is the number of probe samples kept for status and graphs.
const HistorySize = 60

// Record is the daemon's provisioning state. Exactly one Mode is current at
// any instant.
type Record struct {
	Mode          types.Mode
	LastError     string
	InternetOpen  bool
	SuccessStreak int
	LastProbeCode string
	LastProbeAt   time.Time
	OnlineAt      time.Time
	History       []types.ProbeSample

	// Online latches once the uplink went online this boot. It stays set
	// even while Mode shows error after a failed teardown.
	Online bool
}

// SetError moves the record to the error mode with msg as last error.
func (r *Record) SetError(msg string) {
	r.Mode = types.ModeError
	r.LastError = msg
}

// AddSample appends a probe sample, dropping the oldest beyond HistorySize.
func (r *Record) AddSample(s types.ProbeSample) {
	r.History = append(r.History, s)
	if over := len(r.History) - HistorySize; over > 0 {
		r.History = append([]types.ProbeSample(nil), r.History[over:]...)
	}
}

// State guards the Record. Every read goes through Snapshot and every
// change through Update, so readers never observe a half-applied change.
type State struct {
	mu  sync.Mutex
	rec Record
}

// NewState returns state in the starting mode.
func NewState() *State {
	return &State{rec: Record{Mode: types.ModeStarting}}
}

// Snapshot returns a copy of the current record.
func (s *State) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.rec
	rec.History = append([]types.ProbeSample(nil), s.rec.History...)
	return rec
}

// Update applies fn to the record under the lock.
func (s *State) Update(fn func(*Record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.rec)
}

// CompareAndSwap runs fn only if the current mode is not one of blocked
// and the record has not latched online. It reports the mode observed and
// whether fn ran; a latched record is reported as online.
func (s *State) CompareAndSwap(blocked []types.Mode, fn func(*Record)) (types.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rec.Online {
		return types.ModeOnline, false
	}
	for _, m := range blocked {
		if s.rec.Mode == m {
			return m, false
		}
	}
	fn(&s.rec)
	return s.rec.Mode, true
}

// Mode returns the current mode.
func (s *State) Mode() types.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Mode
}
