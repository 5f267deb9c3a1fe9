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

// =============================================================================
// BadgerStore — Session Persistence
// =============================================================================
//
// Session state is small (a few hundred bytes of JSON) and read-modify-
// written once per turn. BadgerDB is embedded — no network call, no
// availability dependency — which keeps the persistence critical section
// short enough to sit inside the per-session turn lock.
//
// Storage layout:
//
//	interview/session/v1/{sessionID}  →  JSON-encoded State
//	                                      TTL: 24h (abandoned sessions
//	                                      expire via BadgerDB GC)
//
// JSON rather than gob: State is flat structs and scalars, JSON
// round-trips it verbatim and stays debuggable with badger's CLI.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionDefaultTTL expires abandoned sessions. A day comfortably
// outlives any real interview.
const sessionDefaultTTL = 24 * time.Hour

// sessionKeyPrefix is versioned (v1) to allow future format changes
// without collision.
const sessionKeyPrefix = "interview/session/v1/"

var (
	sessionStoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "interview",
		Subsystem: "session_store",
		Name:      "ops_total",
		Help:      "Session store operations by op and status",
	}, []string{"op", "status"})

	sessionStoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "interview",
		Subsystem: "session_store",
		Name:      "latency_seconds",
		Help:      "Session store operation latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"op"})
)

// BadgerStore implements Store backed by an embedded BadgerDB.
//
// Description:
//
//	The store owns the DB handle: Open opens it, Close closes it. Warm
//	ids are snapshotted once at open time by scanning the key prefix,
//	so WasWarm answers from memory without touching the DB.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type BadgerStore struct {
	db     *dgbadger.DB
	ttl    time.Duration
	logger *slog.Logger

	warmMu sync.RWMutex
	warm   map[string]bool
}

// OpenBadgerStore opens (or creates) a BadgerStore at the given path.
//
// Inputs:
//
//	path - Directory for the Badger value log and LSM tree.
//	ttl - Session lifetime. Pass 0 for the default (24h).
//	logger - Logger. May be nil.
//
// Outputs:
//
//	*BadgerStore - The opened store.
//	error - Non-nil when the DB cannot be opened; callers degrade to
//	MemoryStore.
func OpenBadgerStore(path string, ttl time.Duration, logger *slog.Logger) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = sessionDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := dgbadger.DefaultOptions(path).WithLogger(nil)
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store at %s: %w", path, err)
	}

	s := &BadgerStore{db: db, ttl: ttl, logger: logger, warm: make(map[string]bool)}
	if err := s.snapshotWarmIDs(); err != nil {
		// Warm tracking is diagnostic only; the store still works.
		logger.Warn("session store: warm id snapshot failed", "error", err)
	}
	logger.Info("session store opened",
		slog.String("path", path),
		slog.Int("warm_sessions", len(s.warm)),
		slog.Duration("ttl", ttl),
	)
	return s, nil
}

func (s *BadgerStore) snapshotWarmIDs() error {
	return s.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(sessionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := string(it.Item().Key()[len(prefix):])
			s.warm[id] = true
		}
		return nil
	})
}

// Get loads a session. ErrSessionNotFound covers both absent keys and
// TTL-expired ones.
func (s *BadgerStore) Get(ctx context.Context, sessionID string) (*State, error) {
	start := time.Now()
	var raw []byte
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("get session key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	sessionStoreLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())

	if errors.Is(err, ErrSessionNotFound) {
		sessionStoreOps.WithLabelValues("get", "miss").Inc()
		return nil, ErrSessionNotFound
	}
	if err != nil {
		sessionStoreOps.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("session store get: %w", err)
	}

	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		sessionStoreOps.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("session store decode: %w", err)
	}
	sessionStoreOps.WithLabelValues("get", "ok").Inc()
	return &state, nil
}

// Put persists a session under the versioned key with the store TTL.
// A failed write must surface to the caller: the turn is reported as
// failed rather than letting in-memory state drift from disk.
func (s *BadgerStore) Put(ctx context.Context, sessionID string, state *State) error {
	start := time.Now()
	raw, err := json.Marshal(state)
	if err != nil {
		sessionStoreOps.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("session store encode: %w", err)
	}

	err = s.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(sessionKey(sessionID), raw).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	sessionStoreLatency.WithLabelValues("put").Observe(time.Since(start).Seconds())
	if err != nil {
		sessionStoreOps.WithLabelValues("put", "error").Inc()
		return fmt.Errorf("session store put: %w", err)
	}
	sessionStoreOps.WithLabelValues("put", "ok").Inc()
	return nil
}

// Delete removes a session. Deleting an absent id is not an error.
func (s *BadgerStore) Delete(ctx context.Context, sessionID string) error {
	start := time.Now()
	err := s.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Delete(sessionKey(sessionID))
	})
	sessionStoreLatency.WithLabelValues("delete").Observe(time.Since(start).Seconds())
	if err != nil {
		sessionStoreOps.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("session store delete: %w", err)
	}
	sessionStoreOps.WithLabelValues("delete", "ok").Inc()
	return nil
}

// WasWarm reports whether the session id existed when the store was
// opened.
func (s *BadgerStore) WasWarm(sessionID string) bool {
	s.warmMu.RLock()
	defer s.warmMu.RUnlock()
	return s.warm[sessionID]
}

// Close closes the underlying DB.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func sessionKey(sessionID string) []byte {
	return []byte(sessionKeyPrefix + sessionID)
}
