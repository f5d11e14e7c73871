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

package flushpolicy

import "time"

// age returns how long ago target was last flushed, and whether it has
// never been flushed (LastFlushTime's zero value), which is treated as
// infinitely old for every MAXAGE comparison.
func age(target FlushTarget, now time.Time) (d time.Duration, never bool) {
	if target.LastFlushTime.IsZero() {
		return 0, true
	}
	d = now.Sub(target.LastFlushTime)
	if d < 0 {
		d = 0
	}
	return d, false
}

// urgentTriggered reports whether any candidate demands an immediate flush.
func urgentTriggered(candidates []FlushContext) bool {
	for _, c := range candidates {
		if c.Target.Urgent {
			return true
		}
	}
	return false
}

// maxAgeTriggered reports whether any candidate's age meets or exceeds the
// configured threshold. A never-flushed target always satisfies this.
func maxAgeTriggered(candidates []FlushContext, now time.Time, threshold time.Duration) bool {
	for _, c := range candidates {
		d, never := age(c.Target, now)
		if never || d >= threshold {
			return true
		}
	}
	return false
}

// perTargetDiskBloatTriggered reports whether any single candidate's disk
// gain ratio exceeds the per-target bloat factor, using the 100MB floor.
func perTargetDiskBloatTriggered(candidates []FlushContext, factor float64) bool {
	for _, c := range candidates {
		gain := nonNegative(c.Target.DiskGain.Gain())
		floor := c.Target.DiskGain.Before
		if floor < minDiskFloor {
			floor = minDiskFloor
		}
		if float64(gain)/float64(floor) > factor {
			return true
		}
	}
	return false
}

// aggregateDiskBloatTriggered reports whether the aggregate disk-gain ratio
// across all candidates exceeds the global bloat factor, using an N*floor
// denominator so small candidate sets aren't penalized by the per-target floor.
func aggregateDiskBloatTriggered(candidates []FlushContext, factor float64) bool {
	if len(candidates) == 0 {
		return false
	}
	var sumGain, sumBefore uint64
	for _, c := range candidates {
		sumGain += nonNegative(c.Target.DiskGain.Gain())
		sumBefore += c.Target.DiskGain.Before
	}
	floor := uint64(len(candidates)) * minDiskFloor
	if sumBefore < floor {
		sumBefore = floor
	}
	return float64(sumGain)/float64(sumBefore) > factor
}

// perTargetMemoryTriggered reports whether any single candidate's memory
// gain meets or exceeds the per-target threshold.
func perTargetMemoryTriggered(candidates []FlushContext, threshold uint64) bool {
	for _, c := range candidates {
		if nonNegative(c.Target.MemoryGain.Gain()) >= threshold {
			return true
		}
	}
	return false
}

// aggregateMemoryTriggered reports whether the aggregate memory gain across
// all candidates meets or exceeds the global threshold.
func aggregateMemoryTriggered(candidates []FlushContext, threshold uint64) bool {
	var sum uint64
	for _, c := range candidates {
		sum += nonNegative(c.Target.MemoryGain.Gain())
	}
	return sum >= threshold
}

// referencedHandlers returns the distinct set of handler names referenced
// by candidates, in first-seen order (order is irrelevant to callers but
// keeps iteration deterministic for any future diagnostics).
func referencedHandlers(candidates []FlushContext) []string {
	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		if _, ok := seen[c.Handler.Name]; ok {
			continue
		}
		seen[c.Handler.Name] = struct{}{}
		out = append(out, c.Handler.Name)
	}
	return out
}

// aggregateTLSBytes sums TlsStats.Bytes across every handler referenced by
// candidates, defaulting missing handlers to zero.
func aggregateTLSBytes(candidates []FlushContext, tls TlsStatsMap) uint64 {
	var sum uint64
	for _, h := range referencedHandlers(candidates) {
		sum += tls.lookup(h).Bytes
	}
	return sum
}

// decision captures the arbiter's conclusion for a single Select call.
type decision struct {
	orderType    OrderType
	useTLSSubOrder bool
}

// decide scans the trigger conditions in precedence order and returns the
// dominant order-type, or OrderNone if nothing triggered.
//
// URGENT and MAXAGE are strict precedence: the first of the two that
// triggers wins outright. DISKBLOAT and MEMORY are evaluated together
// afterward: per spec, when both would fire simultaneously MEMORY's
// comparator dominates, so MEMORY is checked first within that pair.
func (s *FlushStrategy) decide(candidates []FlushContext, tls TlsStatsMap, now time.Time) decision {
	if urgentTriggered(candidates) {
		return decision{orderType: OrderUrgent}
	}
	if maxAgeTriggered(candidates, now, s.cfg.MaxTimeGain) {
		return decision{orderType: OrderMaxAge}
	}

	memByTarget := perTargetMemoryTriggered(candidates, s.cfg.MaxMemoryGain)
	memByAggregate := aggregateMemoryTriggered(candidates, s.cfg.GlobalMaxMemory)
	memByTLS := aggregateTLSBytes(candidates, tls) > s.cfg.MaxGlobalTLSSize
	memoryTriggered := memByTarget || memByAggregate || memByTLS

	if memoryTriggered {
		// TLS-SIZE sub-order applies only when neither direct memory signal
		// fired and the TLS aggregate alone is what triggered MEMORY.
		useTLS := memByTLS && !memByTarget && !memByAggregate
		return decision{orderType: OrderMemory, useTLSSubOrder: useTLS}
	}

	diskTriggered := perTargetDiskBloatTriggered(candidates, s.cfg.DiskBloatFactor) ||
		aggregateDiskBloatTriggered(candidates, s.cfg.TotalDiskBloatFactor)
	if diskTriggered {
		return decision{orderType: OrderDiskBloat}
	}

	return decision{orderType: OrderNone}
}
