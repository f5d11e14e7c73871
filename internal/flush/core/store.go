// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package core hosts the in-memory handler/target registry and the
// background worker that drives flushpolicy.FlushStrategy against it.
package core

import (
	"sync"
	"sync/atomic"
	"time"

	"flushnode/pkg/flushpolicy"
)

// RegisteredTarget is the registry's mutable wrapper around a flush target.
// The policy never sees this type — only the flushpolicy.FlushTarget value
// it currently holds.
type RegisteredTarget struct {
	handler flushpolicy.FlushHandler
	mu      sync.RWMutex
	target  flushpolicy.FlushTarget

	// lastObserved stores the last time this target's stats were refreshed,
	// in UnixNano, for atomic access across goroutines.
	lastObserved int64
}

// Stats returns the target's current statistics.
func (r *RegisteredTarget) Stats() flushpolicy.FlushTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

// Update replaces the target's statistics, as reported by the owning handler.
func (r *RegisteredTarget) Update(target flushpolicy.FlushTarget) {
	r.mu.Lock()
	r.target = target
	r.mu.Unlock()
	atomic.StoreInt64(&r.lastObserved, time.Now().UnixNano())
}

// MarkFlushed records a successful flush: advances FlushedSerial and
// LastFlushTime, and clears the Urgent flag (a flush resolves urgency).
func (r *RegisteredTarget) MarkFlushed(serial uint64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target.FlushedSerial = serial
	r.target.LastFlushTime = at
	r.target.Urgent = false
}

// registryKey identifies a target within the store by handler+target name.
type registryKey struct {
	handler string
	target  string
}

// Store is a concurrency-safe registry of handlers and their flush targets.
// It owns no flush logic itself: it exists only to give the worker and the
// API something real to snapshot and mutate between FlushStrategy.Select calls.
type Store struct {
	targets sync.Map // registryKey -> *RegisteredTarget
	tls     sync.Map // handler name -> flushpolicy.TlsStats
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{}
}

// Register adds or replaces a target under the given handler. Re-registering
// an existing (handler, target) pair resets its stats, which is intended
// for handler-driven refresh, not for clearing flush history — callers that
// only want to update stats should use Update via Get instead.
func (s *Store) Register(handler flushpolicy.FlushHandler, target flushpolicy.FlushTarget) *RegisteredTarget {
	key := registryKey{handler: handler.Name, target: target.Name}
	rt := &RegisteredTarget{handler: handler, target: target, lastObserved: time.Now().UnixNano()}
	actual, _ := s.targets.LoadOrStore(key, rt)
	stored := actual.(*RegisteredTarget)
	if stored != rt {
		stored.Update(target)
	}
	return stored
}

// Get returns the registered target for (handler, name), if present.
func (s *Store) Get(handler, name string) (*RegisteredTarget, bool) {
	v, ok := s.targets.Load(registryKey{handler: handler, target: name})
	if !ok {
		return nil, false
	}
	return v.(*RegisteredTarget), true
}

// SetTlsStats records the current transaction-log statistics for a handler.
func (s *Store) SetTlsStats(handler string, stats flushpolicy.TlsStats) {
	s.tls.Store(handler, stats)
}

// Snapshot builds the inputs for a single FlushStrategy.Select call: a
// stable copy of every registered target as a FlushContext, and the current
// TlsStatsMap. Both are plain copies, safe to hand to the policy without
// holding any lock for the duration of the call.
func (s *Store) Snapshot() ([]flushpolicy.FlushContext, flushpolicy.TlsStatsMap) {
	var candidates []flushpolicy.FlushContext
	s.targets.Range(func(_, value interface{}) bool {
		rt := value.(*RegisteredTarget)
		candidates = append(candidates, flushpolicy.FlushContext{
			Handler: rt.handler,
			Target:  rt.Stats(),
		})
		return true
	})

	tlsStats := flushpolicy.TlsStatsMap{}
	s.tls.Range(func(key, value interface{}) bool {
		tlsStats[key.(string)] = value.(flushpolicy.TlsStats)
		return true
	})
	for i := range candidates {
		candidates[i].LastSerial = tlsStats.Lookup(candidates[i].Handler.Name).LastSerial
	}
	return candidates, tlsStats
}

// MarkFlushed advances the recorded state for a target after a successful
// flush. It is a no-op if the target is no longer registered.
func (s *Store) MarkFlushed(handler, target string, serial uint64, at time.Time) {
	if rt, ok := s.Get(handler, target); ok {
		rt.MarkFlushed(serial, at)
	}
}

// ForEach iterates every registered target. Intended for read-only
// introspection; callers must not mutate
// RegisteredTarget state from outside Update/MarkFlushed.
func (s *Store) ForEach(f func(handler flushpolicy.FlushHandler, target flushpolicy.FlushTarget)) {
	s.targets.Range(func(_, value interface{}) bool {
		rt := value.(*RegisteredTarget)
		f(rt.handler, rt.Stats())
		return true
	})
}

// Deregister removes a target from the registry, e.g. because its handler
// dropped it. It does not flush it first — callers are responsible for
// running a final cycle before deregistering if that matters.
func (s *Store) Deregister(handler, target string) {
	s.targets.Delete(registryKey{handler: handler, target: target})
}
