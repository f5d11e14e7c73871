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

// Package flushpolicy implements the flush-target selection and
// prioritization core of an indexing node: a pure, deterministic policy
// that ranks candidate flush targets against a handful of independent
// resource-pressure signals (memory, disk, age, transaction-log size).
//
// The policy performs no I/O and retains no state between calls: every
// invocation of FlushStrategy.Select is computed entirely from its inputs.
package flushpolicy

import "time"

// MemoryGain describes the heap a flush target would free if flushed.
// Before and After are independent snapshots; the target itself decides
// what they represent (resident bytes, arena size, and so on).
type MemoryGain struct {
	Before uint64
	After  uint64
}

// Gain returns the signed number of bytes the flush would reclaim. It may
// be negative if After exceeds Before (the target would grow, not shrink).
func (g MemoryGain) Gain() int64 {
	return int64(g.Before) - int64(g.After)
}

// DiskGain describes the disk bytes a flush target would reclaim.
type DiskGain struct {
	Before uint64
	After  uint64
}

// Gain returns the signed number of bytes the flush would reclaim on disk.
func (g DiskGain) Gain() int64 {
	return int64(g.Before) - int64(g.After)
}

// FlushTarget is a single flushable component of a handler. The policy
// treats it as opaque aside from these statistics — it never inspects the
// target's implementation.
type FlushTarget struct {
	Name string

	MemoryGain MemoryGain
	DiskGain   DiskGain

	// FlushedSerial is the last transaction-log serial this target has
	// durably retired. Must not exceed the owning handler's TlsStats.LastSerial
	// for a healthy handler.
	FlushedSerial uint64

	// LastFlushTime is the wall-clock time this target was last flushed.
	// The zero value denotes "never flushed" and is treated as infinitely old.
	LastFlushTime time.Time

	// Urgent, when true, forces this target (and by extension the whole
	// candidate set) onto the URGENT order-type regardless of any other signal.
	Urgent bool
}

// FlushHandler identifies the owner of a transaction-log stream and a set
// of flush targets. The policy never dereferences anything beyond the name.
type FlushHandler struct {
	Name string
}

// FlushContext is the per-invocation pairing of a handler and one of its
// targets that the policy ranks. LastSerial is a convenience snapshot of
// the handler's transaction-log last-serial at the time the context was
// built; the authoritative value for trigger/comparator arithmetic is
// always looked up from the TlsStatsMap passed to Select.
type FlushContext struct {
	Handler    FlushHandler
	Target     FlushTarget
	LastSerial uint64
}

// TlsStats describes the transaction-log state for a single handler.
type TlsStats struct {
	Bytes       uint64
	FirstSerial uint64
	LastSerial  uint64
}

// TlsStatsMap maps a handler name to its transaction-log statistics.
// A handler absent from the map is treated as the zero value
// (bytes: 0, first_serial: 0, last_serial: 0).
type TlsStatsMap map[string]TlsStats

// Lookup returns the TlsStats for handler, defaulting to the zero value
// when the handler is not present in the map.
func (m TlsStatsMap) Lookup(handler string) TlsStats {
	if m == nil {
		return TlsStats{}
	}
	return m[handler]
}

// lookup is an unexported alias kept for in-package call sites.
func (m TlsStatsMap) lookup(handler string) TlsStats {
	return m.Lookup(handler)
}

// OrderType identifies the dominant resource-pressure signal chosen by the
// arbiter for a given Select call.
type OrderType int

const (
	// OrderNone indicates no trigger fired; Select returns an empty list.
	OrderNone OrderType = iota
	OrderUrgent
	OrderMaxAge
	OrderDiskBloat
	OrderMemory
)

// String renders the OrderType for logs and test failure messages.
func (o OrderType) String() string {
	switch o {
	case OrderUrgent:
		return "URGENT"
	case OrderMaxAge:
		return "MAXAGE"
	case OrderDiskBloat:
		return "DISKBLOAT"
	case OrderMemory:
		return "MEMORY"
	default:
		return "NONE"
	}
}

// nonNegative clamps a signed gain to zero for trigger/comparator purposes
// without mutating the originally reported value (spec: negative gains are
// never silently clamped in the stored field, only where they are compared).
func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
