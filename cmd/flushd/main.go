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

// Package main provides the entry point for the flush node daemon.
//
// It wires together the pure flushpolicy core (pkg/flushpolicy), the
// in-memory target registry and background worker (internal/flush/core),
// a pluggable idempotent persistence adapter (internal/flush/persistence),
// opt-in resource-pressure telemetry (internal/flush/telemetry/pressure),
// and the HTTP control plane (internal/flush/api). On SIGINT/SIGTERM it
// stops the worker first — which runs one final unconditional sweep — then
// shuts the HTTP server down with a bounded timeout.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flushnode/internal/flush/api"
	"flushnode/internal/flush/core"
	"flushnode/internal/flush/persistence"
	"flushnode/internal/flush/telemetry/pressure"
	"flushnode/pkg/flushpolicy"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	maxMemoryGain := pflag.Uint64("max_memory_gain", 64<<20, "Per-target memory gain (bytes) that triggers MEMORY")
	globalMaxMemory := pflag.Uint64("global_max_memory", 512<<20, "Aggregate memory gain (bytes) that triggers MEMORY")
	maxTimeGain := pflag.Duration("max_time_gain", 10*time.Minute, "Target age that triggers MAXAGE")
	diskBloatFactor := pflag.Float64("disk_bloat_factor", 2.0, "Per-target disk-bloat ratio that triggers DISKBLOAT")
	totalDiskBloatFactor := pflag.Float64("total_disk_bloat_factor", 1.5, "Aggregate disk-bloat ratio that triggers DISKBLOAT")
	maxGlobalTLSSize := pflag.Uint64("max_global_tls_size", 256<<20, "Aggregate transaction-log bytes that triggers the MEMORY/TLS-SIZE branch")

	cycleInterval := pflag.Duration("cycle_interval", 5*time.Second, "How often the background worker evaluates the policy")
	httpAddr := pflag.String("http_addr", ":8080", "HTTP control-plane listen address")

	adapter := pflag.String("persistence_adapter", "mock", "Persistence adapter: mock, redis, kafka, or postgres")
	redisAddr := pflag.String("redis_addr", "", "Redis address for the redis adapter; empty uses a logging stand-in")
	redisMarkerTTL := pflag.Duration("redis_marker_ttl", 24*time.Hour, "TTL for the redis idempotency marker")
	kafkaTopic := pflag.String("kafka_topic", "flush-retired", "Kafka topic for the kafka adapter")

	pressureEnabled := pflag.Bool("pressure_metrics", false, "Enable in-process resource-pressure telemetry (opt-in)")
	metricsAddr := pflag.String("metrics_addr", "", "If non-empty, also expose Prometheus /metrics on a dedicated address (the control plane's mux always serves /metrics)")
	pressureLogInterval := pflag.Duration("pressure_log_interval", 15*time.Second, "If > 0, periodically log a pressure summary. 0 disables.")
	pflag.Parse()

	core.SetThresholdInt64("max_memory_gain", int64(*maxMemoryGain))
	core.SetThresholdInt64("global_max_memory", int64(*globalMaxMemory))
	core.SetThresholdDuration("max_time_gain", *maxTimeGain)
	core.SetThresholdFloat64("disk_bloat_factor", *diskBloatFactor)
	core.SetThresholdFloat64("total_disk_bloat_factor", *totalDiskBloatFactor)
	core.SetThresholdInt64("max_global_tls_size", int64(*maxGlobalTLSSize))
	core.SetThresholdDuration("cycle_interval", *cycleInterval)
	core.SetThreshold("http_addr", *httpAddr)
	core.SetThreshold("persistence_adapter", *adapter)
	core.SetThresholdBool("pressure_metrics", *pressureEnabled)

	pressure.Enable(pressure.Config{
		Enabled:     *pressureEnabled,
		MetricsAddr: *metricsAddr,
		LogInterval: *pressureLogInterval,
	})

	strategy, err := flushpolicy.NewFlushStrategy(flushpolicy.PolicyConfig{
		MaxMemoryGain:        *maxMemoryGain,
		GlobalMaxMemory:      *globalMaxMemory,
		MaxTimeGain:          *maxTimeGain,
		DiskBloatFactor:      *diskBloatFactor,
		TotalDiskBloatFactor: *totalDiskBloatFactor,
		MaxGlobalTLSSize:     *maxGlobalTLSSize,
	})
	if err != nil {
		log.Fatalf("invalid policy configuration: %v", err)
	}

	persister, err := persistence.BuildPersister(*adapter, persistence.AdapterOptions{
		RedisAddr:      *redisAddr,
		RedisMarkerTTL: *redisMarkerTTL,
		KafkaTopic:     *kafkaTopic,
	})
	if err != nil {
		log.Fatalf("could not build persistence adapter %q: %v", *adapter, err)
	}

	store := core.NewStore()
	worker := core.NewWorker(store, strategy, persister, *cycleInterval)
	worker.OnCycle(func(orderType flushpolicy.OrderType, selected []flushpolicy.FlushContext, selectionTime time.Duration) {
		pressure.ObserveCycle(orderType, len(selected), selectionTime)
	})
	worker.OnPersistError(func(err error) {
		pressure.ObservePersistError()
	})
	worker.Start()

	apiServer := api.NewServer(store, strategy, worker)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	group, _ := errgroup.WithContext(context.Background())
	group.Go(func() error {
		log.Printf("flush node control plane listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("shutting down flush node...")
	worker.Stop()
	persister.PrintFinalMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("server shutdown failed: %v", err)
	}

	if err := group.Wait(); err != nil {
		log.Fatalf("control plane error: %v", err)
	}
	log.Println("flush node stopped.")
}
