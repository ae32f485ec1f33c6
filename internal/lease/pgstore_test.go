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
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func testPool(t *testing.T, ctx context.Context) *pgxpool.Pool {
	dsn := os.Getenv("TEST_LEASES_DSN")
	if dsn == "" {
		t.Skip("TEST_LEASES_DSN not set, skipping Postgres lease store tests")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := EnsureLeasesSchema(ctx, pool); err != nil {
		t.Fatalf("EnsureLeasesSchema: %v", err)
	}
	// 清空表以便测试独立
	_, _ = pool.Exec(ctx, `DELETE FROM leases`)
	t.Cleanup(pool.Close)
	return pool
}

func TestPgStore_AcquireConflictRelease(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testPool(t, ctx))

	l, err := s.Acquire(ctx, "task:1", "w-A", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !l.ExpiresAt.After(l.CreatedAt) {
		t.Errorf("expires_at must follow created_at: %+v", l)
	}

	if _, err := s.Acquire(ctx, "task:1", "w-B", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("concurrent acquire = %v, want ErrHeld", err)
	}

	if err := s.Release(ctx, l.ID); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := s.Release(ctx, l.ID); err != nil {
		t.Fatalf("second release should succeed: %v", err)
	}
	if _, err := s.Acquire(ctx, "task:1", "w-B", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestPgStore_RenewLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testPool(t, ctx))

	l, err := s.Acquire(ctx, "task:2", "w-A", 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	renewed, err := s.Renew(ctx, "task:2", "w-A", 2*time.Second)
	if err != nil {
		t.Fatalf("Renew: %v", err)
	}
	if renewed.ID != l.ID || renewed.RenewedAt == nil {
		t.Errorf("renew should touch the same row: %+v", renewed)
	}
	if renewed.ExpiresAt.Before(l.ExpiresAt) {
		t.Errorf("expiry moved backwards: %v -> %v", l.ExpiresAt, renewed.ExpiresAt)
	}

	if _, err := s.Renew(ctx, "task:2", "w-B", 2*time.Second); !errors.Is(err, ErrHeld) {
		t.Fatalf("renew as non-holder = %v, want ErrHeld", err)
	}
	if _, err := s.Renew(ctx, "ghost", "w-A", 2*time.Second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("renew unknown resource = %v, want ErrNotFound", err)
	}
}

func TestPgStore_ExpiryHistory(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testPool(t, ctx))

	first, err := s.Acquire(ctx, "task:3", "w-A", 500*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Second)

	if _, err := s.Renew(ctx, "task:3", "w-A", time.Minute); !errors.Is(err, ErrLost) {
		t.Fatalf("renew after expiry = %v, want ErrLost", err)
	}

	second, err := s.Acquire(ctx, "task:3", "w-B", time.Minute)
	if err != nil {
		t.Fatalf("reacquire after expiry: %v", err)
	}
	if second.ID == first.ID {
		t.Error("reacquire must insert a new row")
	}

	expired, err := s.ListByState(ctx, StateExpired)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range expired {
		found = found || e.ID == first.ID
	}
	if !found {
		t.Errorf("first row should remain as expired history, got %+v", expired)
	}
}

// 并发互斥：多个连接抢同一 resource，只有一个成功
func TestPgStore_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	s := NewPostgresStore(testPool(t, ctx))

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Acquire(ctx, "task:contended", "w", time.Minute); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("exactly one concurrent acquire should win, got %d", wins)
	}
}
