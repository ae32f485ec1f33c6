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
	"errors"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
	"github.com/abouchard11/sports-betting-analytics/pkg/metrics"
	"github.com/abouchard11/sports-betting-analytics/pkg/tracing"
)

// LeaseService Dispatcher 对租约服务的依赖；进程内由 lease.Manager 满足，
// 跨进程由 leaseclient.Service（HTTP）满足，错误哨兵与 lease 包共用
type LeaseService interface {
	Acquire(ctx context.Context, resource, holder string) (*lease.Lease, error)
	Renew(ctx context.Context, resource, holder string) (*lease.Lease, error)
	Release(ctx context.Context, id int64) error
}

// Dispatcher 任务派发：认领、心跳、完成、放弃。租约冲突由租约服务裁定，
// 这里只透传不再解释；任何冲突对 Worker 都意味着 "任务已失去"。
type Dispatcher struct {
	store  Store
	leases LeaseService
	ttl    time.Duration
	logger *log.Logger
}

// NewDispatcher 创建 Dispatcher；ttl <= 0 时使用 30s
func NewDispatcher(store Store, leases LeaseService, ttl time.Duration, logger *log.Logger) *Dispatcher {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Dispatcher{store: store, leases: leases, ttl: ttl, logger: logger}
}

// ClaimNext 认领下一个任务。无任务返回 ErrNoTask；并发回收竞争输掉时返回
// pkg/errors.ErrConflict，任务保持未认领，等下一次轮询。
func (d *Dispatcher) ClaimNext(ctx context.Context, processor string) (*Task, error) {
	if processor == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空")
	}
	ctx, span := tracing.StartTaskSpan(ctx, "claim", processor)
	defer span.End()
	t, reclaimed, err := d.store.ClaimNext(ctx, processor, d.ttl, func(ctx context.Context, t *Task) (int64, error) {
		l, err := d.leases.Acquire(ctx, ResourceName(t.ID), processor)
		if err != nil {
			return 0, err
		}
		return l.ID, nil
	})
	switch {
	case err == nil:
		metrics.TaskClaimTotal.WithLabelValues("claimed").Inc()
		if reclaimed {
			metrics.TaskReclaimTotal.Inc()
			d.logger.Info("task reclaimed", "task_id", t.ID, "processor", processor)
		} else {
			d.logger.Info("task claimed", "task_id", t.ID, "processor", processor)
		}
		return t, nil
	case errors.Is(err, ErrNoTask):
		metrics.TaskClaimTotal.WithLabelValues("none").Inc()
		return nil, err
	case errors.Is(err, lease.ErrHeld):
		// 并发回收抢先拿到了租约；任务事务已回滚
		metrics.TaskClaimTotal.WithLabelValues("conflict").Inc()
		d.logger.Warn("claim lost lease race", "processor", processor)
		return nil, pkgerrors.Wrap(pkgerrors.ErrConflict, "lease already held")
	default:
		metrics.TaskClaimTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.Wrapf(err, "claim next for %q", processor)
	}
}

// Heartbeat 续约任务心跳；归属校验失败或租约丢失一律 ErrNotOwner
func (d *Dispatcher) Heartbeat(ctx context.Context, id int64, processor string) (*Task, error) {
	if processor == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空")
	}
	ctx, span := tracing.StartTaskSpan(ctx, "heartbeat", processor)
	defer span.End()
	t, err := d.store.Heartbeat(ctx, id, processor, d.ttl, func(ctx context.Context, t *Task) error {
		_, err := d.leases.Renew(ctx, ResourceName(t.ID), processor)
		return err
	})
	switch {
	case err == nil:
		metrics.TaskHeartbeatTotal.WithLabelValues("ok").Inc()
		return t, nil
	case errors.Is(err, ErrNotFound):
		metrics.TaskHeartbeatTotal.WithLabelValues("conflict").Inc()
		return nil, err
	case errors.Is(err, ErrNotOwner),
		errors.Is(err, lease.ErrLost),
		errors.Is(err, lease.ErrHeld),
		errors.Is(err, lease.ErrNotFound):
		// 租约侧的 Conflict/NotFound 对 Worker 统一呈现为失去任务
		metrics.TaskHeartbeatTotal.WithLabelValues("conflict").Inc()
		d.logger.Warn("heartbeat rejected", "task_id", id, "processor", processor, "err", err)
		return nil, ErrNotOwner
	default:
		metrics.TaskHeartbeatTotal.WithLabelValues("error").Inc()
		return nil, pkgerrors.Wrapf(err, "heartbeat task %d", id)
	}
}

// Complete 上报任务完成。租约已失效时拒绝（Worker 不能提交它无法证明归属的输出）；
// 完成写入提交后的租约释放是尽力而为，失败只记日志
func (d *Dispatcher) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) error {
	if processor == "" {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空")
	}
	ctx, span := tracing.StartTaskSpan(ctx, "complete", processor)
	defer span.End()
	leaseID, err := d.store.Complete(ctx, id, processor, output)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		metrics.TaskCompleteTotal.WithLabelValues("conflict").Inc()
		return err
	case errors.Is(err, ErrNotOwner):
		metrics.TaskCompleteTotal.WithLabelValues("conflict").Inc()
		d.logger.Warn("complete rejected", "task_id", id, "processor", processor)
		return err
	default:
		metrics.TaskCompleteTotal.WithLabelValues("error").Inc()
		return pkgerrors.Wrapf(err, "complete task %d", id)
	}

	metrics.TaskCompleteTotal.WithLabelValues("ok").Inc()
	d.logger.Info("task completed", "task_id", id, "processor", processor)
	if leaseID > 0 {
		if err := d.leases.Release(ctx, leaseID); err != nil {
			d.logger.Warn("lease release after completion failed", "task_id", id, "lease_id", leaseID, "err", err)
		}
	}
	return nil
}

// Abandon 放弃任务：心跳期限立即过期、清除 processor，任务回到可认领；随后尽力释放租约
func (d *Dispatcher) Abandon(ctx context.Context, id int64, processor string) error {
	if processor == "" {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空")
	}
	leaseID, err := d.store.Abandon(ctx, id, processor)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) {
			return err
		}
		return pkgerrors.Wrapf(err, "abandon task %d", id)
	}
	d.logger.Info("task abandoned", "task_id", id, "processor", processor)
	if leaseID > 0 {
		if err := d.leases.Release(ctx, leaseID); err != nil {
			d.logger.Warn("lease release after abandon failed", "task_id", id, "lease_id", leaseID, "err", err)
		}
	}
	return nil
}

// Store 返回底层任务存储（查询端点使用）
func (d *Dispatcher) Store() Store {
	return d.store
}

// TTL 返回配置的租约时长
func (d *Dispatcher) TTL() time.Duration {
	return d.ttl
}
