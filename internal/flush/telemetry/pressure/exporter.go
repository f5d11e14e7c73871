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

package pressure

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"flushnode/pkg/flushpolicy"
)

var (
	exporterMu   sync.Mutex
	exporterStop chan struct{}
	exporterDone chan struct{}
	currCfg      atomic.Value

	lastOrder     atomic.Value
	lastSelected  atomic.Int64
	cyclesSince   atomic.Int64
	triggeredSince atomic.Int64
)

func startOrUpdateExporter(cfg Config) {
	exporterMu.Lock()
	defer exporterMu.Unlock()

	currCfg.Store(cfg)

	if exporterStop != nil {
		close(exporterStop)
		<-exporterDone
		exporterStop, exporterDone = nil, nil
	}
	if !cfg.Enabled || cfg.LogInterval <= 0 {
		return
	}
	exporterStop = make(chan struct{})
	exporterDone = make(chan struct{})
	go exporterLoop(exporterStop, exporterDone)
}

func exporterLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	cfgAny := currCfg.Load()
	cfg, _ := cfgAny.(Config)
	ticker := time.NewTicker(cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publishSnapshot()
		case <-stop:
			return
		}
	}
}

func publishSnapshot() {
	cycles := cyclesSince.Swap(0)
	triggered := triggeredSince.Swap(0)
	order := "NONE"
	if v, ok := lastOrder.Load().(string); ok && v != "" {
		order = v
	}
	selected := lastSelected.Load()

	ts := time.Now().Format(time.RFC3339)
	fmt.Printf("[%s] flush pressure summary: cycles=%d triggered=%d last_order=%s last_selected=%d\n",
		ts, cycles, triggered, order, selected)
}

func exporterRecordCycle(order flushpolicy.OrderType, triggered bool, selectedCount int) {
	cyclesSince.Add(1)
	if triggered {
		triggeredSince.Add(1)
		lastOrder.Store(order.String())
		lastSelected.Store(int64(selectedCount))
	}
}
