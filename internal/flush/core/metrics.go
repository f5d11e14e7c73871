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

// Package core also carries shared, process-level counters for the
// end-of-process summary printed by the mock persister. These are kept
// lightweight (atomics only) since they may be touched once per worker cycle.
package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	cyclesTriggered atomic.Int64
	targetsSelected atomic.Int64
)

// RecordCycle records the outcome of a single worker cycle: whether the
// policy triggered, and if so, how many targets it selected.
func RecordCycle(triggered bool, selected int) {
	if triggered {
		cyclesTriggered.Add(1)
	}
	if selected > 0 {
		targetsSelected.Add(int64(selected))
	}
}

func getCycleTotals() (triggered, selected int64) {
	return cyclesTriggered.Load(), targetsSelected.Load()
}

// resetCycleTotals resets counters to zero. Intended for tests only.
func resetCycleTotals() {
	cyclesTriggered.Store(0)
	targetsSelected.Store(0)
}

var (
	thresholdsMu sync.Mutex
	thresholds   = map[string]string{}
)

// SetThreshold records a configured tunable for the final summary printer.
func SetThreshold(name, value string) {
	thresholdsMu.Lock()
	thresholds[name] = value
	thresholdsMu.Unlock()
}

// SetThresholdInt64 is a convenience wrapper around SetThreshold for integers.
func SetThresholdInt64(name string, value int64) {
	SetThreshold(name, fmt.Sprintf("%d", value))
}

// SetThresholdDuration is a convenience wrapper around SetThreshold for durations.
func SetThresholdDuration(name string, value time.Duration) {
	SetThreshold(name, value.String())
}

// SetThresholdFloat64 is a convenience wrapper around SetThreshold for floats.
func SetThresholdFloat64(name string, value float64) {
	SetThreshold(name, fmt.Sprintf("%g", value))
}

// SetThresholdBool is a convenience wrapper around SetThreshold for booleans.
func SetThresholdBool(name string, value bool) {
	SetThreshold(name, fmt.Sprintf("%t", value))
}

func getThresholdSnapshot() map[string]string {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	out := make(map[string]string, len(thresholds))
	for k, v := range thresholds {
		out[k] = v
	}
	return out
}
