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

// Package core implements the background worker responsible for turning
// flushpolicy decisions into durable action.
package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"flushnode/pkg/flushpolicy"
)

// Worker periodically snapshots the Store, asks a FlushStrategy which
// targets to flush, and hands the plan to a Persister.
type Worker struct {
	store     *Store
	strategy  *flushpolicy.FlushStrategy
	persister Persister
	interval  time.Duration

	onCycle        func(orderType flushpolicy.OrderType, selected []flushpolicy.FlushContext, selectionTime time.Duration)
	onPersistError func(err error)

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewWorker creates and configures a background worker.
//
// interval controls how often the worker asks the policy for a plan.
// onCycle, if non-nil, is called after every cycle (even ones that select
// nothing) and is the hook telemetry uses to observe trigger frequency and
// selection size without coupling the worker to a specific metrics backend.
func NewWorker(store *Store, strategy *flushpolicy.FlushStrategy, persister Persister, interval time.Duration) *Worker {
	return &Worker{
		store:     store,
		strategy:  strategy,
		persister: persister,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// OnCycle registers a callback invoked after each cycle's decision is made,
// before the batch is persisted.
func (w *Worker) OnCycle(f func(orderType flushpolicy.OrderType, selected []flushpolicy.FlushContext, selectionTime time.Duration)) {
	w.onCycle = f
}

// OnPersistError registers a callback invoked whenever a batch fails to persist.
func (w *Worker) OnPersistError(f func(err error)) {
	w.onPersistError = f
}

// Start launches the worker's background loop.
func (w *Worker) Start() {
	fmt.Println("Starting flush worker...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
}

// Stop gracefully stops the worker, running one final unconditional sweep
// of every target with a non-trivial gain or TLS backlog first — a
// graceful shutdown's goal is to minimize replay time and memory pressure,
// not to honor the policy's normal dominance rules.
func (w *Worker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	fmt.Println("Stopping flush worker...")
	close(w.stopChan)
	w.wg.Wait()
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunCycle(time.Now())
		case <-w.stopChan:
			w.runFinalSweep()
			return
		}
	}
}

// RunCycle runs exactly one selection+persistence cycle. Exported so tests
// and the API's manual /flush endpoint can trigger a cycle synchronously.
func (w *Worker) RunCycle(now time.Time) {
	candidates, tlsStats := w.store.Snapshot()
	start := time.Now()
	orderType, selected := w.strategy.SelectWithOrder(candidates, tlsStats, now)
	selectionTime := time.Since(start)

	RecordCycle(len(selected) > 0, len(selected))
	if w.onCycle != nil {
		w.onCycle(orderType, selected, selectionTime)
	}

	if len(selected) == 0 {
		return
	}

	records := make([]FlushRecord, 0, len(selected))
	for _, c := range selected {
		records = append(records, FlushRecord{
			Handler: c.Handler.Name,
			Target:  c.Target.Name,
			Serial:  c.LastSerial,
		})
	}

	if err := w.persister.FlushBatch(records); err != nil {
		fmt.Printf("ERROR: failed to flush batch: %v\n", err)
		if w.onPersistError != nil {
			w.onPersistError(err)
		}
		return
	}

	for _, c := range selected {
		w.store.MarkFlushed(c.Handler.Name, c.Target.Name, c.LastSerial, now)
	}
}

// runFinalSweep flushes every target with a non-zero memory or disk gain,
// or any unreplayed TLS backlog, regardless of the policy's normal
// precedence rules. Intended only for graceful shutdown.
func (w *Worker) runFinalSweep() {
	candidates, tlsStats := w.store.Snapshot()
	var records []FlushRecord
	now := time.Now()
	for _, c := range candidates {
		hasGain := c.Target.MemoryGain.Gain() > 0 || c.Target.DiskGain.Gain() > 0
		hasBacklog := tlsStats.Lookup(c.Handler.Name).LastSerial > c.Target.FlushedSerial
		if !hasGain && !hasBacklog {
			continue
		}
		records = append(records, FlushRecord{
			Handler: c.Handler.Name,
			Target:  c.Target.Name,
			Serial:  tlsStats.Lookup(c.Handler.Name).LastSerial,
		})
	}
	if len(records) == 0 {
		return
	}
	if err := w.persister.FlushBatch(records); err != nil {
		fmt.Printf("ERROR: failed to flush final batch: %v\n", err)
		return
	}
	for _, r := range records {
		w.store.MarkFlushed(r.Handler, r.Target, r.Serial, now)
	}
}
