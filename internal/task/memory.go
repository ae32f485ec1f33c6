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

package task

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// memoryStore 内存实现；dev profile 与单元测试使用。整个认领事务在互斥锁内完成，
// 与 pg 实现的行锁语义一致（租约回调也在锁内执行，失败即丢弃暂写状态）。
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Task
}

// NewMemoryStore 创建内存版任务存储
func NewMemoryStore() Store {
	return &memoryStore{rows: make(map[int64]*Task)}
}

func copyTask(t *Task) *Task {
	out := *t
	if len(t.Data) > 0 {
		out.Data = append(json.RawMessage(nil), t.Data...)
	}
	if len(t.Output) > 0 {
		out.Output = append(json.RawMessage(nil), t.Output...)
	}
	return &out
}

func (s *memoryStore) Create(ctx context.Context, data json.RawMessage) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	s.nextID++
	t := &Task{
		ID:          s.nextID,
		Data:        append(json.RawMessage(nil), data...),
		ScheduledAt: time.Now(),
	}
	s.rows[t.ID] = t
	return copyTask(t), nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTask(t), nil
}

func (s *memoryStore) listLocked(filter func(*Task) bool) []Task {
	var out []Task
	for _, t := range s.rows {
		if filter(t) {
			out = append(out, *copyTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memoryStore) List(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(*Task) bool { return true }), nil
}

func (s *memoryStore) ListStarted(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(t *Task) bool {
		return t.StartedAt != nil && t.ProcessedAt == nil
	}), nil
}

func (s *memoryStore) ListProcessed(ctx context.Context) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked(func(t *Task) bool { return t.ProcessedAt != nil }), nil
}

func (s *memoryStore) CountBacklog(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var scheduled, abandoned int64
	for _, t := range s.rows {
		switch t.StateAt(now) {
		case StateScheduled:
			scheduled++
		case StateAbandoned:
			abandoned++
		}
	}
	return scheduled, abandoned, nil
}

func (s *memoryStore) ClaimNext(ctx context.Context, processor string, ttl time.Duration, acquire AcquireFunc) (*Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()

	var target *Task
	for _, t := range s.rows {
		if !t.ClaimableAt(now) {
			continue
		}
		if target == nil || t.ID < target.ID {
			target = t
		}
	}
	if target == nil {
		return nil, false, ErrNoTask
	}
	reclaimed := target.StartedAt != nil

	// 暂写认领字段到副本；租约回调失败时原行不动
	tentative := copyTask(target)
	started := now
	deadline := now.Add(ttl)
	tentative.StartedAt = &started
	tentative.LastHeartbeatAt = &started
	tentative.MustHeartbeatBefore = &deadline
	tentative.Processor = &processor
	tentative.Output = nil
	tentative.LeaseID = nil

	leaseID, err := acquire(ctx, tentative)
	if err != nil {
		return nil, false, err
	}
	tentative.LeaseID = &leaseID
	s.rows[target.ID] = tentative
	return copyTask(tentative), reclaimed, nil
}

func (s *memoryStore) Heartbeat(ctx context.Context, id int64, processor string, ttl time.Duration, renew RenewFunc) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.OwnedBy(processor, now) {
		return nil, ErrNotOwner
	}
	if err := renew(ctx, copyTask(t)); err != nil {
		return nil, err
	}
	beat := now
	deadline := now.Add(ttl)
	t.LastHeartbeatAt = &beat
	t.MustHeartbeatBefore = &deadline
	return copyTask(t), nil
}

func (s *memoryStore) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	t, ok := s.rows[id]
	if !ok {
		return 0, ErrNotFound
	}
	if !t.OwnedBy(processor, now) {
		return 0, ErrNotOwner
	}
	if len(output) == 0 {
		output = json.RawMessage("null")
	}
	processed := now
	t.ProcessedAt = &processed
	t.Output = append(json.RawMessage(nil), output...)
	if t.LeaseID != nil {
		return *t.LeaseID, nil
	}
	return 0, nil
}

func (s *memoryStore) Abandon(ctx context.Context, id int64, processor string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[id]
	if !ok {
		return 0, ErrNotFound
	}
	if t.ProcessedAt != nil || t.Processor == nil || *t.Processor != processor {
		return 0, ErrNotOwner
	}
	var leaseID int64
	if t.LeaseID != nil {
		leaseID = *t.LeaseID
	}
	now := time.Now()
	t.MustHeartbeatBefore = &now
	t.Processor = nil
	t.LeaseID = nil
	return leaseID, nil
}
