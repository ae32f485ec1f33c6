// Copyright 2026 abouchard11
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

package taskclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/task"
)

func newFakeDispatcher(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()
	var state sync.Map // "empty" → bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tasks/next", func(w http.ResponseWriter, r *http.Request) {
		if v, ok := state.Load("empty"); ok && v.(bool) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var req struct {
			Processor string `json:"processor"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		now := time.Now()
		deadline := now.Add(30 * time.Second)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 7, "task_data": map[string]int{"n": 1},
			"scheduled_at": now, "started_at": now,
			"must_heartbeat_before": deadline, "processor": req.Processor,
		})
	})
	mux.HandleFunc("PUT /tasks/7/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Processor string `json:"processor"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Processor != "w-A" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not owner"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 7, "task_data": map[string]int{"n": 1}, "scheduled_at": time.Now(),
			"must_heartbeat_before": time.Now().Add(30 * time.Second),
		})
	})
	mux.HandleFunc("PUT /tasks/7/complete", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "status": "completed"})
	})
	mux.HandleFunc("PUT /tasks/7/abandon", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 7, "status": "abandoned"})
	})
	mux.HandleFunc("PUT /tasks/8/heartbeat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no such task"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &state
}

func TestClient_NextAndNoContent(t *testing.T) {
	ctx := context.Background()
	srv, state := newFakeDispatcher(t)
	c := NewClient(srv.URL, time.Second)

	got, err := c.Next(ctx, "w-A")
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.ID != 7 || got.Processor == nil || *got.Processor != "w-A" {
		t.Fatalf("task mismatch: %+v", got)
	}
	if got.MustHeartbeatBefore == nil {
		t.Fatal("must_heartbeat_before missing")
	}

	state.Store("empty", true)
	if _, err := c.Next(ctx, "w-A"); !errors.Is(err, task.ErrNoTask) {
		t.Fatalf("empty next = %v, want ErrNoTask", err)
	}
}

func TestClient_HeartbeatMapping(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFakeDispatcher(t)
	c := NewClient(srv.URL, time.Second)

	if _, err := c.Heartbeat(ctx, 7, "w-A"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if _, err := c.Heartbeat(ctx, 7, "w-B"); !errors.Is(err, task.ErrNotOwner) {
		t.Fatalf("foreign heartbeat = %v, want ErrNotOwner", err)
	}
	if _, err := c.Heartbeat(ctx, 8, "w-A"); !errors.Is(err, task.ErrNotFound) {
		t.Fatalf("unknown heartbeat = %v, want ErrNotFound", err)
	}
}

func TestClient_CompleteAndAbandon(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFakeDispatcher(t)
	c := NewClient(srv.URL, time.Second)

	if err := c.Complete(ctx, 7, "w-A", json.RawMessage(`{"ok":1}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := c.Abandon(ctx, 7, "w-A"); err != nil {
		t.Fatalf("Abandon: %v", err)
	}
}
