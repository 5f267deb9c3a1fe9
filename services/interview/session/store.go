// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"sync"
)

// ErrSessionNotFound is returned by Store.Get for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store persists session state between turns.
//
// Description:
//
//	Must round-trip the full slot/strike/stage/flag shape verbatim.
//	WasWarm reports whether the id already existed when the process
//	started; it is used only for cold/warm logging.
//
// Thread Safety: Implementations must be safe for concurrent use.
// Turn-level serialization is the Locker's job, not the store's.
type Store interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Put(ctx context.Context, sessionID string, state *State) error
	Delete(ctx context.Context, sessionID string) error
	WasWarm(sessionID string) bool
	Close() error
}

// =============================================================================
// Locker — per-session turn serialization
// =============================================================================

// Locker hands out one mutex per session id so that at most one turn
// mutates a given session at a time. Strike suppression and retry
// counters compare against "the last turn", which makes concurrent
// turns on the same session a correctness problem, not just a race.
//
// Thread Safety: Safe for concurrent use.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-session mutex, creating it on first use, and
// returns the unlock function.
func (l *Locker) Lock(sessionID string) func() {
	l.mu.Lock()
	m, ok := l.locks[sessionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[sessionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore is the in-process Store used in tests and as the
// graceful-degradation fallback when the Badger store cannot open.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

// NewMemoryStore creates an empty MemoryStore. Nothing pre-exists, so
// WasWarm is always false.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*State)}
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *st
	return &cp, nil
}

func (m *MemoryStore) Put(_ context.Context, sessionID string, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.sessions[sessionID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

// WasWarm always reports false: a memory store starts empty.
func (m *MemoryStore) WasWarm(string) bool { return false }

func (m *MemoryStore) Close() error { return nil }
