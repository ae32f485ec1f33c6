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

package lease

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(NewMemoryStore(), ttl, logger)
}

func TestManager_ValidatesArgs(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, time.Minute)
	if _, err := m.Acquire(ctx, "", "w-A"); !errors.Is(err, pkgerrors.ErrInvalidArg) {
		t.Fatalf("acquire with empty resource = %v, want ErrInvalidArg", err)
	}
	if _, err := m.Renew(ctx, "task:1", ""); !errors.Is(err, pkgerrors.ErrInvalidArg) {
		t.Fatalf("renew with empty holder = %v, want ErrInvalidArg", err)
	}
}

// 互斥：同一 resource 并发获取，恰好一个成功
func TestManager_MutualExclusionUnderContention(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, time.Minute)

	const workers = 16
	var wg sync.WaitGroup
	acquired := make(chan *Lease, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if l, err := m.Acquire(ctx, "task:7", string(rune('a'+n))); err == nil {
				acquired <- l
			}
		}(i)
	}
	wg.Wait()
	close(acquired)

	var winners []*Lease
	for l := range acquired {
		winners = append(winners, l)
	}
	if len(winners) != 1 {
		t.Fatalf("exactly one acquire should win, got %d", len(winners))
	}

	active, err := m.ListByState(ctx, StateActive)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 {
		t.Fatalf("active rows = %d, want 1", len(active))
	}
}

// 续期单调性：每次成功续期 expires_at 不回退
func TestManager_RenewalMonotonic(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, time.Minute)

	l, err := m.Acquire(ctx, "task:1", "w-A")
	if err != nil {
		t.Fatal(err)
	}
	last := l.ExpiresAt
	for i := 0; i < 5; i++ {
		time.Sleep(2 * time.Millisecond)
		r, err := m.Renew(ctx, "task:1", "w-A")
		if err != nil {
			t.Fatalf("renew #%d: %v", i, err)
		}
		if r.ExpiresAt.Before(last) {
			t.Fatalf("expiry moved backwards: %v -> %v", last, r.ExpiresAt)
		}
		last = r.ExpiresAt
	}
}

func TestManager_RenewAfterExpiryIsConflict(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, 15*time.Millisecond)

	if _, err := m.Acquire(ctx, "task:3", "w-A"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := m.Renew(ctx, "task:3", "w-A"); !errors.Is(err, ErrLost) {
		t.Fatalf("renew after expiry = %v, want ErrLost", err)
	}

	// 丢失后另一 holder 可以获取
	if _, err := m.Acquire(ctx, "task:3", "w-B"); err != nil {
		t.Fatalf("acquire after loss: %v", err)
	}
}

func TestManager_DefaultTTL(t *testing.T) {
	m := newTestManager(t, 0)
	if m.TTL() != 30*time.Second {
		t.Fatalf("default ttl = %v, want 30s", m.TTL())
	}
}
