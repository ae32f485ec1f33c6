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
	"time"

	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
	"github.com/abouchard11/sports-betting-analytics/pkg/metrics"
	"github.com/abouchard11/sports-betting-analytics/pkg/tracing"
)

// Manager Store 之上的服务层：持有 TTL、做参数校验、计数与日志。
// 过期规则只有一条且只在这里与 Store 里出现：expires_at = 存储端 now + TTL。
type Manager struct {
	store  Store
	ttl    time.Duration
	logger *log.Logger
}

// NewManager 创建租约管理器；ttl <= 0 时使用 30s
func NewManager(store Store, ttl time.Duration, logger *log.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{store: store, ttl: ttl, logger: logger}
}

// TTL 返回配置的租约时长
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Acquire 获取 resource 上的租约；已有 active 租约时返回 ErrHeld
func (m *Manager) Acquire(ctx context.Context, resource, holder string) (*Lease, error) {
	if resource == "" || holder == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "resource 与 holder 不能为空")
	}
	ctx, span := tracing.StartLeaseSpan(ctx, "acquire", resource, holder)
	defer span.End()
	l, err := m.store.Acquire(ctx, resource, holder, m.ttl)
	switch {
	case err == nil:
		metrics.LeaseAcquireTotal.WithLabelValues("acquired").Inc()
		m.logger.Info("lease acquired", "resource", resource, "holder", holder, "id", l.ID, "expires_at", l.ExpiresAt)
		return l, nil
	case errors.Is(err, ErrHeld):
		metrics.LeaseAcquireTotal.WithLabelValues("conflict").Inc()
		metrics.LeaseConflictTotal.Inc()
		return nil, err
	default:
		metrics.LeaseAcquireTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.Wrapf(err, "acquire %q", resource)
	}
}

// Renew 续期本 holder 的 active 租约；过期后续期返回 ErrLost（调用方必须显式重新 Acquire）
func (m *Manager) Renew(ctx context.Context, resource, holder string) (*Lease, error) {
	if resource == "" || holder == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "resource 与 holder 不能为空")
	}
	ctx, span := tracing.StartLeaseSpan(ctx, "renew", resource, holder)
	defer span.End()
	l, err := m.store.Renew(ctx, resource, holder, m.ttl)
	switch {
	case err == nil:
		metrics.LeaseRenewTotal.WithLabelValues("renewed").Inc()
		return l, nil
	case errors.Is(err, ErrLost), errors.Is(err, ErrHeld):
		metrics.LeaseRenewTotal.WithLabelValues("lost").Inc()
		metrics.LeaseConflictTotal.Inc()
		m.logger.Warn("lease renew conflict", "resource", resource, "holder", holder, "err", err)
		return nil, err
	case errors.Is(err, ErrNotFound):
		metrics.LeaseRenewTotal.WithLabelValues("not_found").Inc()
		return nil, err
	default:
		metrics.LeaseRenewTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.Wrapf(err, "renew %q", resource)
	}
}

// Release 释放租约（幂等）
func (m *Manager) Release(ctx context.Context, id int64) error {
	err := m.store.Release(ctx, id)
	if err == nil {
		metrics.LeaseReleaseTotal.Inc()
		m.logger.Info("lease released", "id", id)
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return pkgerrors.Wrapf(err, "release %d", id)
}

// Get 按 id 查询
func (m *Manager) Get(ctx context.Context, id int64) (*Lease, error) {
	return m.store.Get(ctx, id)
}

// ListByState 按派生状态列出；dashboard 与巡检使用
func (m *Manager) ListByState(ctx context.Context, state State) ([]Lease, error) {
	return m.store.ListByState(ctx, state)
}
