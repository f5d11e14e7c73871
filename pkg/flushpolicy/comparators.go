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

// comparator imposes a strict total order over candidates for one
// order-type. less(a, b) reports whether a should sort before b. Every
// comparator ends in a name-ascending tie-break, per spec's determinism
// requirement.
type comparator func(a, b FlushContext) bool

// urgentComparator ranks urgent targets first, then by name.
func urgentComparator() comparator {
	return func(a, b FlushContext) bool {
		if a.Target.Urgent != b.Target.Urgent {
			return a.Target.Urgent
		}
		return a.Target.Name < b.Target.Name
	}
}

// maxAgeComparator ranks greater age first; never-flushed targets rank
// above every finite age.
func maxAgeComparator(now time.Time) comparator {
	return func(a, b FlushContext) bool {
		ageA, neverA := age(a.Target, now)
		ageB, neverB := age(b.Target, now)
		if neverA != neverB {
			return neverA
		}
		if ageA != ageB {
			return ageA > ageB
		}
		return a.Target.Name < b.Target.Name
	}
}

// diskBloatComparator ranks greater absolute disk gain first.
func diskBloatComparator() comparator {
	return func(a, b FlushContext) bool {
		gA := nonNegative(a.Target.DiskGain.Gain())
		gB := nonNegative(b.Target.DiskGain.Gain())
		if gA != gB {
			return gA > gB
		}
		return a.Target.Name < b.Target.Name
	}
}

// memoryComparator ranks greater memory gain first.
func memoryComparator() comparator {
	return func(a, b FlushContext) bool {
		gA := nonNegative(a.Target.MemoryGain.Gain())
		gB := nonNegative(b.Target.MemoryGain.Gain())
		if gA != gB {
			return gA > gB
		}
		return a.Target.Name < b.Target.Name
	}
}

// tlsGap returns how many unreplayed log entries flushing ctx would retire:
// the owning handler's last serial minus the target's flushed serial.
// Serial arithmetic uses uint64 throughout since serials routinely exceed
// the 32-bit range; a target whose flushed serial has overtaken the
// handler's last serial (should not happen for a healthy handler) clamps
// to a zero gap rather than underflowing.
func tlsGap(ctx FlushContext, tls TlsStatsMap) uint64 {
	stats := tls.lookup(ctx.Handler.Name)
	if ctx.Target.FlushedSerial >= stats.LastSerial {
		return 0
	}
	return stats.LastSerial - ctx.Target.FlushedSerial
}

// tlsSizeComparator ranks the target whose flush would retire the most
// unreplayed transaction-log entries first. Used only when MEMORY triggers
// via the aggregate TLS-size signal alone.
func tlsSizeComparator(tls TlsStatsMap) comparator {
	return func(a, b FlushContext) bool {
		gapA := tlsGap(a, tls)
		gapB := tlsGap(b, tls)
		if gapA != gapB {
			return gapA > gapB
		}
		return a.Target.Name < b.Target.Name
	}
}
