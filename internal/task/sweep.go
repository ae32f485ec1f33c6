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
	"sync"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
	"github.com/abouchard11/sports-betting-analytics/pkg/metrics"
)

// LeaseLister 巡检对租约服务的只读依赖
type LeaseLister interface {
	ListByState(ctx context.Context, state lease.State) ([]lease.Lease, error)
}

// Sweeper 周期巡检：刷新积压/待回收/活跃租约指标并记录超期认领。
// 只观测不回收——回收本身发生在 ClaimNext 里，巡检不与认领竞争写。
type Sweeper struct {
	store    Store
	leases   LeaseLister
	interval time.Duration
	logger   *log.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper 创建巡检器；interval <= 0 时使用 10s；leases 可为 nil（跳过租约指标）
func NewSweeper(store Store, leases LeaseLister, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sweeper{
		store:    store,
		leases:   leases,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start 启动巡检循环
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop 停止巡检并等待循环退出
func (s *Sweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Sweeper) sweep(ctx context.Context) {
	scheduled, abandoned, err := s.store.CountBacklog(ctx)
	if err != nil {
		s.logger.Warn("backlog sweep failed", "err", err)
		return
	}
	metrics.TaskBacklog.Set(float64(scheduled))
	metrics.TaskAbandoned.Set(float64(abandoned))
	if abandoned > 0 {
		s.logger.Info("abandoned tasks awaiting reclaim", "count", abandoned)
	}

	if s.leases == nil {
		return
	}
	active, err := s.leases.ListByState(ctx, lease.StateActive)
	if err != nil {
		s.logger.Warn("lease sweep failed", "err", err)
		return
	}
	metrics.LeaseActive.Set(float64(len(active)))
}
