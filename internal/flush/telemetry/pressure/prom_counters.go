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

// Package pressure provides opt-in, low-overhead telemetry for the flush
// worker's resource-pressure decisions. It is designed to be safe to call
// from the worker's hot cycle loop: when disabled, every public function is
// a no-op. Metrics are global only — no per-handler or per-target label, to
// keep cardinality bounded regardless of fleet size.
package pressure

import (
	"net/http"
	"sync/atomic"
	"time"

	"flushnode/pkg/flushpolicy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the behavior of the pressure module.
type Config struct {
	Enabled bool

	// MetricsAddr, when non-empty, starts a dedicated HTTP server serving
	// /metrics. Leave empty if /metrics is already exposed by the control
	// plane's own mux (see api.Server.RegisterRoutes).
	MetricsAddr string

	// LogInterval controls the periodic summary line written to stdout.
	// Zero disables the exporter loop.
	LogInterval time.Duration
}

var (
	modEnabled atomic.Bool

	cyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flush_cycles_total",
		Help: "Total worker cycles run, regardless of whether a trigger fired",
	})
	triggeredCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flush_cycles_triggered_total",
		Help: "Total worker cycles where at least one trigger fired",
	})
	orderTypeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flush_order_type_total",
		Help: "Cycles broken down by the dominant order-type the arbiter selected",
	}, []string{"order_type"})
	targetsSelectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flush_targets_selected_total",
		Help: "Total targets selected for flush across all cycles",
	})
	targetsPerCycle = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flush_targets_per_cycle",
		Help:    "Distribution of targets selected per triggered cycle",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	})
	selectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flush_selection_duration_seconds",
		Help:    "Wall-clock time spent inside FlushStrategy.SelectWithOrder per cycle",
		Buckets: prometheus.DefBuckets,
	})
	persistErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flush_persist_errors_total",
		Help: "Total persister errors encountered while flushing a batch",
	})
)

func init() {
	prometheus.MustRegister(
		cyclesTotal, triggeredCyclesTotal, orderTypeTotal,
		targetsSelectedTotal, targetsPerCycle, selectionDuration, persistErrorsTotal,
	)
}

// Enable configures the module. Safe to call multiple times; later calls
// replace the prior configuration.
func Enable(cfg Config) {
	modEnabled.Store(cfg.Enabled)
	startOrUpdateExporter(cfg)
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether the pressure module is active.
func Enabled() bool { return modEnabled.Load() }

// ObserveCycle records the outcome of one worker cycle. duration is the
// time FlushStrategy.SelectWithOrder took to decide.
func ObserveCycle(order flushpolicy.OrderType, selectedCount int, duration time.Duration) {
	if !modEnabled.Load() {
		return
	}
	cyclesTotal.Inc()
	selectionDuration.Observe(duration.Seconds())
	triggered := order != flushpolicy.OrderNone
	if triggered {
		triggeredCyclesTotal.Inc()
		orderTypeTotal.WithLabelValues(order.String()).Inc()
		if selectedCount > 0 {
			targetsSelectedTotal.Add(float64(selectedCount))
			targetsPerCycle.Observe(float64(selectedCount))
		}
	}
	exporterRecordCycle(order, triggered, selectedCount)
}

// ObservePersistError increments the persister-error counter.
func ObservePersistError() {
	if !modEnabled.Load() {
		return
	}
	persistErrorsTotal.Inc()
}

func startMetricsEndpoint(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}
