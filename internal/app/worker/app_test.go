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

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	"github.com/abouchard11/sports-betting-analytics/internal/task"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
)

// inlineClient 进程内 TaskClient：直接打到 Dispatcher，省掉 HTTP 层
type inlineClient struct {
	d *task.Dispatcher
}

func (c *inlineClient) Next(ctx context.Context, processor string) (*task.Task, error) {
	return c.d.ClaimNext(ctx, processor)
}

func (c *inlineClient) Heartbeat(ctx context.Context, id int64, processor string) (*task.Task, error) {
	return c.d.Heartbeat(ctx, id, processor)
}

func (c *inlineClient) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) error {
	return c.d.Complete(ctx, id, processor, output)
}

func (c *inlineClient) Abandon(ctx context.Context, id int64, processor string) error {
	return c.d.Abandon(ctx, id, processor)
}

type workerFixture struct {
	store      task.Store
	dispatcher *task.Dispatcher
	client     *inlineClient
	logger     *log.Logger
}

func newWorkerFixture(t *testing.T, ttl time.Duration) *workerFixture {
	t.Helper()
	logger, err := log.NewLogger(&log.Config{Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	manager := lease.NewManager(lease.NewMemoryStore(), ttl, logger)
	store := task.NewMemoryStore()
	return &workerFixture{
		store:      store,
		dispatcher: task.NewDispatcher(store, manager, ttl, logger),
		client:     &inlineClient{d: task.NewDispatcher(store, manager, ttl, logger)},
		logger:     logger,
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestWorker_CompletesTask(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, time.Minute)
	created, err := f.store.Create(ctx, json.RawMessage(`{"n":42}`))
	if err != nil {
		t.Fatal(err)
	}

	execute := func(ctx context.Context, tk *task.Task) (json.RawMessage, error) {
		var in struct {
			N int `json:"n"`
		}
		if err := json.Unmarshal(tk.Data, &in); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]int{"squared": in.N * in.N})
	}
	w := newApp("w-A", f.client, execute, 10*time.Millisecond, 20*time.Millisecond, f.logger)
	w.Start(ctx)
	defer w.Shutdown(context.Background())

	waitFor(t, 2*time.Second, func() bool {
		got, err := f.store.Get(ctx, created.ID)
		return err == nil && got.ProcessedAt != nil
	})
	got, err := f.store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Output) != `{"squared":1764}` {
		t.Fatalf("output = %s, want {\"squared\":1764}", got.Output)
	}
}

func TestWorker_AbandonsOnExecutorError(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, time.Minute)
	created, err := f.store.Create(ctx, json.RawMessage(`{}`))
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	attempts := 0
	execute := func(ctx context.Context, tk *task.Task) (json.RawMessage, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return nil, errors.New("workload blew up")
		}
		return json.RawMessage(`{"ok":true}`), nil
	}
	w := newApp("w-A", f.client, execute, 10*time.Millisecond, 20*time.Millisecond, f.logger)
	w.Start(ctx)
	defer w.Shutdown(context.Background())

	// 第一次失败 → 放弃 → 重新认领 → 第二次成功
	waitFor(t, 2*time.Second, func() bool {
		got, err := f.store.Get(ctx, created.ID)
		return err == nil && got.ProcessedAt != nil
	})
	mu.Lock()
	defer mu.Unlock()
	if attempts < 2 {
		t.Fatalf("attempts = %d, want at least 2 (abandon then retry)", attempts)
	}
}

func TestWorker_AbandonsOnPanic(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, time.Minute)
	if _, err := f.store.Create(ctx, json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	panicked := false
	execute := func(ctx context.Context, tk *task.Task) (json.RawMessage, error) {
		mu.Lock()
		first := !panicked
		panicked = true
		mu.Unlock()
		if first {
			panic("boom")
		}
		return json.RawMessage(`{}`), nil
	}
	w := newApp("w-A", f.client, execute, 10*time.Millisecond, 20*time.Millisecond, f.logger)
	w.Start(ctx)
	defer w.Shutdown(context.Background())

	// panic 被兜住并放弃；任务随后被重试完成
	waitFor(t, 2*time.Second, func() bool {
		processed, err := f.store.ListProcessed(ctx)
		return err == nil && len(processed) == 1
	})
}

// lostClient 包装 inlineClient，心跳一律拒绝，模拟失去租约
type lostClient struct {
	*inlineClient
	completed chan struct{}
}

func (c *lostClient) Heartbeat(ctx context.Context, id int64, processor string) (*task.Task, error) {
	return nil, task.ErrNotOwner
}

func (c *lostClient) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) error {
	close(c.completed)
	return c.inlineClient.Complete(ctx, id, processor, output)
}

func TestWorker_DropsResultAfterLostLease(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, time.Minute)
	if _, err := f.store.Create(ctx, json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}

	client := &lostClient{inlineClient: f.client, completed: make(chan struct{})}
	execute := func(ctx context.Context, tk *task.Task) (json.RawMessage, error) {
		time.Sleep(80 * time.Millisecond) // 让心跳循环先跑到拒绝
		return json.RawMessage(`{}`), nil
	}
	w := newApp("w-A", client, execute, 10*time.Millisecond, 15*time.Millisecond, f.logger)
	w.Start(ctx)
	defer w.Shutdown(context.Background())

	select {
	case <-client.completed:
		t.Fatal("worker must not complete a task after losing its lease")
	case <-time.After(300 * time.Millisecond):
	}
}
