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

package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// FlushRecord is a single target flush the worker hands to a Persister.
type FlushRecord struct {
	Handler string
	Target  string
	Serial  uint64
}

// Persister is the interface the worker uses to durably record a batch of
// flushes. Implementations in internal/flush/persistence adapt this to
// concrete backends (Postgres, Redis, Kafka); NewMockPersister is a
// dependency-free stand-in for demos and tests.
type Persister interface {
	FlushBatch(records []FlushRecord) error
	// PrintFinalMetrics prints a single end-of-process summary. Safe to
	// call after all flushes are done.
	PrintFinalMetrics()
}

// NewMockPersister creates a persister that logs flushes to stdout and
// accumulates a simple summary, for demos and tests that don't need a real backend.
func NewMockPersister() Persister {
	return &mockPersister{}
}

type mockPersister struct {
	mu           sync.Mutex
	totalRecords int64
	totalBatches int64
}

// FlushBatch logs the batch and accumulates summary counters.
func (p *mockPersister) FlushBatch(records []FlushRecord) error {
	if len(records) == 0 {
		return nil
	}
	fmt.Printf("[%s] Flushing batch of %d targets...\n", time.Now().Format(time.RFC3339), len(records))
	for _, r := range records {
		fmt.Printf("  - HANDLER: %-20s TARGET: %-20s SERIAL: %d\n", r.Handler, r.Target, r.Serial)
	}
	p.mu.Lock()
	p.totalRecords += int64(len(records))
	p.totalBatches++
	p.mu.Unlock()
	return nil
}

// PrintFinalMetrics prints a single summary at the end of the process.
func (p *mockPersister) PrintFinalMetrics() {
	p.mu.Lock()
	records := p.totalRecords
	batches := p.totalBatches
	p.mu.Unlock()

	triggered, selected := getCycleTotals()
	th := getThresholdSnapshot()
	keys := make([]string, 0, len(th))
	for k := range th {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sep := strings.Repeat("-", 60)
	fmt.Println("Final flush metrics")
	fmt.Println(sep)
	fmt.Printf("%-18s %12s\n", "Metric", "Value")
	fmt.Println(sep)
	fmt.Printf("%-18s %12d\n", "Cycles triggered", triggered)
	fmt.Printf("%-18s %12d\n", "Targets selected", selected)
	fmt.Printf("%-18s %12d\n", "Targets flushed", records)
	fmt.Printf("%-18s %12d\n", "Batches", batches)
	fmt.Println(sep)

	if len(keys) > 0 {
		fmt.Println("Configured thresholds")
		fmt.Println(sep)
		fmt.Printf("%-30s %24s\n", "Name", "Value")
		fmt.Println(sep)
		for _, k := range keys {
			fmt.Printf("%-30s %24s\n", k, th[k])
		}
		fmt.Println(sep)
	}
}
