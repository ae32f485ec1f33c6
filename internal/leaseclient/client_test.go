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

package leaseclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
)

// fakeLeaseServer 可编程的租约服务桩
type fakeLeaseServer struct {
	mu           sync.Mutex
	renewCount   int
	renewStatus  int
	releaseCount int
	srv          *httptest.Server
}

func newFakeLeaseServer(t *testing.T) *fakeLeaseServer {
	t.Helper()
	f := &fakeLeaseServer{renewStatus: http.StatusCreated}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /leases", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Resource string `json:"resource"`
			Holder   string `json:"holder"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Resource == "held" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "resource held"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 42, "resource": req.Resource, "holder": req.Holder,
			"created_at": time.Now(), "expires_at": time.Now().Add(30 * time.Second),
		})
	})
	mux.HandleFunc("PUT /leases/renew", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.renewCount++
		status := f.renewStatus
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusCreated {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "lease lost"})
			return
		}
		renewed := time.Now()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": 42, "renewed_at": renewed, "expires_at": renewed.Add(30 * time.Second),
		})
	})
	mux.HandleFunc("DELETE /leases/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.releaseCount++
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/9999") {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "no such lease"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "released"})
	})
	mux.HandleFunc("GET /leases", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{{"id": 1, "resource": "r", "holder": "h"}})
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLeaseServer) renews() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewCount
}

func (f *fakeLeaseServer) setRenewStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewStatus = code
}

func TestService_StatusMapping(t *testing.T) {
	ctx := context.Background()
	f := newFakeLeaseServer(t)
	svc := NewService(f.srv.URL, time.Second)

	l, err := svc.Acquire(ctx, "task:1", "w-A")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if l.ID != 42 || l.Resource != "task:1" {
		t.Fatalf("lease mismatch: %+v", l)
	}

	if _, err := svc.Acquire(ctx, "held", "w-A"); !errors.Is(err, lease.ErrHeld) {
		t.Fatalf("acquire held = %v, want ErrHeld", err)
	}

	if _, err := svc.Renew(ctx, "task:1", "w-A"); err != nil {
		t.Fatalf("Renew: %v", err)
	}
	f.setRenewStatus(http.StatusConflict)
	if _, err := svc.Renew(ctx, "task:1", "w-A"); !errors.Is(err, lease.ErrLost) {
		t.Fatalf("renew conflict = %v, want ErrLost", err)
	}
	f.setRenewStatus(http.StatusNotFound)
	if _, err := svc.Renew(ctx, "ghost", "w-A"); !errors.Is(err, lease.ErrNotFound) {
		t.Fatalf("renew unknown = %v, want ErrNotFound", err)
	}

	if err := svc.Release(ctx, 42); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := svc.Release(ctx, 9999); !errors.Is(err, lease.ErrNotFound) {
		t.Fatalf("release unknown = %v, want ErrNotFound", err)
	}

	rows, err := svc.ListByState(ctx, lease.StateActive)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByState = %d rows, err %v", len(rows), err)
	}
}

func TestHandle_AutoRenew(t *testing.T) {
	ctx := context.Background()
	f := newFakeLeaseServer(t)
	h := NewHandle(NewService(f.srv.URL, time.Second), "task:1", "w-A")

	if err := h.Renew(ctx); err == nil {
		t.Fatal("renew before acquire must fail")
	}
	if err := h.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if h.ID() != 42 {
		t.Fatalf("handle id = %d, want 42", h.ID())
	}

	if err := h.StartAutoRenew(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	h.StopAutoRenew()
	if f.renews() == 0 {
		t.Fatal("auto renewer never fired")
	}
	afterStop := f.renews()
	time.Sleep(40 * time.Millisecond)
	if f.renews() != afterStop {
		t.Fatal("renewer kept running after StopAutoRenew")
	}

	if err := h.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// 幂等：重复释放无副作用
	if err := h.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestHandle_LostLeaseIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFakeLeaseServer(t)
	h := NewHandle(NewService(f.srv.URL, time.Second), "task:1", "w-A")
	if err := h.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	f.setRenewStatus(http.StatusConflict)
	if err := h.StartAutoRenew(10 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for !h.Lost() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !h.Lost() {
		t.Fatal("handle should be lost after a 409 renewal")
	}
	renewsWhenLost := f.renews()
	time.Sleep(40 * time.Millisecond)
	if f.renews() != renewsWhenLost {
		t.Fatal("renew loop must stop after losing the lease")
	}
	h.StopAutoRenew()

	// 终态：手工续期也直接失败
	if err := h.Renew(ctx); !errors.Is(err, lease.ErrLost) {
		t.Fatalf("renew after loss = %v, want ErrLost", err)
	}
}
