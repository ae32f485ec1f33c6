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
	"sort"
	"sync"
	"time"
)

// memoryStore 内存实现；dev profile 与单元测试使用。互斥锁即本实现的 "行锁"：
// 同一 resource 的 lock → check → write 在锁内完成，与 pg 实现语义一致。
type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Lease
}

// NewMemoryStore 创建内存版租约存储
func NewMemoryStore() Store {
	return &memoryStore{rows: make(map[int64]*Lease)}
}

func (s *memoryStore) Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, l := range s.rows {
		if l.Resource == resource && l.ActiveAt(now) {
			return nil, ErrHeld
		}
	}
	s.nextID++
	l := &Lease{
		ID:        s.nextID,
		Resource:  resource,
		Holder:    holder,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	s.rows[l.ID] = l
	out := *l
	return &out, nil
}

func (s *memoryStore) Renew(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var (
		seen        bool
		target      *Lease
		lostHere    bool
		heldByOther bool
	)
	for _, l := range s.rows {
		if l.Resource != resource {
			continue
		}
		seen = true
		if l.Released() {
			continue
		}
		switch {
		case l.ActiveAt(now) && l.Holder == holder:
			target = l
		case l.ActiveAt(now):
			heldByOther = true
		case l.Holder == holder:
			lostHere = true
		}
	}
	switch {
	case target != nil:
	case lostHere:
		return nil, ErrLost
	case heldByOther:
		return nil, ErrHeld
	case !seen:
		return nil, ErrNotFound
	default:
		return nil, ErrNotFound
	}
	renewed := now
	target.RenewedAt = &renewed
	target.ExpiresAt = now.Add(ttl)
	out := *target
	return &out, nil
}

func (s *memoryStore) Release(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	if l.ReleasedAt == nil {
		released := time.Now()
		l.ReleasedAt = &released
	}
	return nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (*Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *l
	return &out, nil
}

func (s *memoryStore) ListByState(ctx context.Context, state State) ([]Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var out []Lease
	for _, l := range s.rows {
		if l.MatchesAt(state, now) {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
