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

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flushnode/internal/flush/core"
	"flushnode/pkg/flushpolicy"

	"github.com/stretchr/testify/require"
)

func newTestStrategy(t *testing.T) *flushpolicy.FlushStrategy {
	t.Helper()
	strat, err := flushpolicy.NewFlushStrategy(flushpolicy.PolicyConfig{
		MaxMemoryGain:        1_000_000,
		GlobalMaxMemory:      10_000_000,
		MaxTimeGain:          time.Hour,
		DiskBloatFactor:      0.5,
		TotalDiskBloatFactor: 0.5,
		MaxGlobalTLSSize:     1_000_000,
	})
	require.NoError(t, err)
	return strat
}

func TestServer_Targets(t *testing.T) {
	store := core.NewStore()
	store.Register(flushpolicy.FlushHandler{Name: "h1"}, flushpolicy.FlushTarget{Name: "t1"})
	srv := NewServer(store, newTestStrategy(t), nil)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/targets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_TargetsWrongMethod(t *testing.T) {
	store := core.NewStore()
	srv := NewServer(store, newTestStrategy(t), nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/targets", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Plan(t *testing.T) {
	store := core.NewStore()
	store.Register(flushpolicy.FlushHandler{Name: "h1"}, flushpolicy.FlushTarget{Name: "t1", Urgent: true})
	srv := NewServer(store, newTestStrategy(t), nil)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/plan", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Target remains unmarked since plan is a dry run.
	rt, ok := store.Get("h1", "t1")
	require.True(t, ok)
	require.True(t, rt.Stats().Urgent)
}

func TestServer_FlushWithoutWorkerIsUnavailable(t *testing.T) {
	store := core.NewStore()
	srv := NewServer(store, newTestStrategy(t), nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/flush", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_FlushWithWorkerRunsCycle(t *testing.T) {
	store := core.NewStore()
	store.Register(flushpolicy.FlushHandler{Name: "h1"}, flushpolicy.FlushTarget{Name: "t1", Urgent: true})
	persister := core.NewMockPersister()
	worker := core.NewWorker(store, newTestStrategy(t), persister, time.Hour)
	srv := NewServer(store, newTestStrategy(t), worker)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/flush", nil)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	rt, ok := store.Get("h1", "t1")
	require.True(t, ok)
	require.False(t, rt.Stats().Urgent)
}

func TestServer_Healthz(t *testing.T) {
	store := core.NewStore()
	srv := NewServer(store, newTestStrategy(t), nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsRoute(t *testing.T) {
	store := core.NewStore()
	srv := NewServer(store, newTestStrategy(t), nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ListenAndServe_InvalidAddr(t *testing.T) {
	store := core.NewStore()
	srv := NewServer(store, newTestStrategy(t), nil)
	err := srv.ListenAndServe("127.0.0.1:notaport")
	require.Error(t, err)
}
