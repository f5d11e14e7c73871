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

// Package api implements the control-plane HTTP server for the flush node.
// It exposes read-only introspection of registered targets, a dry-run
// planning endpoint, and a manual flush trigger, backed by the same Store
// and FlushStrategy the background worker uses.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"flushnode/internal/flush/core"
	"flushnode/pkg/flushpolicy"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles the HTTP control plane for the flush node.
type Server struct {
	store    *core.Store
	strategy *flushpolicy.FlushStrategy
	worker   *core.Worker
}

// NewServer creates and configures a new API server. worker may be nil if
// the caller never wants to expose a manual /flush endpoint (e.g. read-only
// inspection tooling).
func NewServer(store *core.Store, strategy *flushpolicy.FlushStrategy, worker *core.Worker) *Server {
	return &Server{store: store, strategy: strategy, worker: worker}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/targets", s.handleTargets)
	mux.HandleFunc("/plan", s.handlePlan)
	mux.HandleFunc("/flush", s.handleFlush)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
}

type targetView struct {
	Handler       string `json:"handler"`
	Target        string `json:"target"`
	FlushedSerial uint64 `json:"flushed_serial"`
	LastSerial    uint64 `json:"last_serial"`
	MemoryGain    int64  `json:"memory_gain"`
	DiskGain      int64  `json:"disk_gain"`
	Urgent        bool   `json:"urgent"`
}

// handleTargets returns a snapshot of every registered target.
func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	candidates, _ := s.store.Snapshot()
	views := make([]targetView, 0, len(candidates))
	for _, c := range candidates {
		views = append(views, targetView{
			Handler:       c.Handler.Name,
			Target:        c.Target.Name,
			FlushedSerial: c.Target.FlushedSerial,
			LastSerial:    c.LastSerial,
			MemoryGain:    c.Target.MemoryGain.Gain(),
			DiskGain:      c.Target.DiskGain.Gain(),
			Urgent:        c.Target.Urgent,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

type planResponse struct {
	OrderType string       `json:"order_type"`
	Targets   []targetView `json:"targets"`
}

// handlePlan runs the selection policy against the current snapshot without
// persisting anything or marking any target flushed — a dry run.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	candidates, tls := s.store.Snapshot()
	orderType, selected := s.strategy.SelectWithOrder(candidates, tls, time.Now())

	views := make([]targetView, 0, len(selected))
	for _, c := range selected {
		views = append(views, targetView{
			Handler:       c.Handler.Name,
			Target:        c.Target.Name,
			FlushedSerial: c.Target.FlushedSerial,
			LastSerial:    c.LastSerial,
			MemoryGain:    c.Target.MemoryGain.Gain(),
			DiskGain:      c.Target.DiskGain.Gain(),
			Urgent:        c.Target.Urgent,
		})
	}
	writeJSON(w, http.StatusOK, planResponse{OrderType: orderType.String(), Targets: views})
}

// handleFlush triggers one synchronous worker cycle on demand. Intended for
// operator-driven flushes outside the normal ticker cadence.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.worker == nil {
		http.Error(w, "manual flush is not enabled on this server", http.StatusServiceUnavailable)
		return
	}
	s.worker.RunCycle(time.Now())
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe starts the HTTP server on the specified address, with the
// same conservative timeouts the worker's persistence layer assumes
// upstream load balancers enforce.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return httpServer.ListenAndServe()
}
