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

import (
	"sort"
	"time"
)

// Select is the policy's single primary operation. It classifies the
// candidate set against the trigger conditions in precedence order
// (URGENT, MAXAGE, then MEMORY/DISKBLOAT together), and — if any trigger
// fired — returns every candidate sorted by the chosen order-type's
// comparator. If nothing triggered, it returns an empty slice.
//
// candidates and tlsStats must represent a single consistent snapshot: this
// call never re-reads them and performs no I/O. Select is safe to call
// concurrently from multiple goroutines against the same *FlushStrategy.
func (s *FlushStrategy) Select(candidates []FlushContext, tlsStats TlsStatsMap, now time.Time) []FlushContext {
	_, result := s.SelectWithOrder(candidates, tlsStats, now)
	return result
}

// SelectWithOrder behaves exactly like Select but additionally reports
// which order-type triggered the result (OrderNone when the result is
// empty). It exists for callers — the worker, telemetry — that need to
// know why a plan was produced without re-deriving it from the candidates.
func (s *FlushStrategy) SelectWithOrder(candidates []FlushContext, tlsStats TlsStatsMap, now time.Time) (OrderType, []FlushContext) {
	if len(candidates) == 0 {
		return OrderNone, []FlushContext{}
	}

	evalNow := s.resolveNow(now)
	d := s.decide(candidates, tlsStats, evalNow)
	if d.orderType == OrderNone {
		return OrderNone, []FlushContext{}
	}

	result := make([]FlushContext, len(candidates))
	copy(result, candidates)

	var cmp comparator
	switch d.orderType {
	case OrderUrgent:
		cmp = urgentComparator()
	case OrderMaxAge:
		cmp = maxAgeComparator(evalNow)
	case OrderDiskBloat:
		cmp = diskBloatComparator()
	case OrderMemory:
		if d.useTLSSubOrder {
			cmp = tlsSizeComparator(tlsStats)
		} else {
			cmp = memoryComparator()
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return cmp(result[i], result[j])
	})
	return d.orderType, result
}
