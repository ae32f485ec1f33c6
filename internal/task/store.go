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
)

var (
	// ErrNoTask 无可认领任务
	ErrNoTask = errors.New("task: no task available to claim")
	// ErrNotFound 未知任务 id
	ErrNotFound = errors.New("task: no such task")
	// ErrNotOwner 调用方不再持有该任务：processor 不匹配、心跳已超期或任务已完成
	ErrNotOwner = errors.New("task: processor does not own an unexpired claim")
)

// AcquireFunc ClaimNext 事务内的租约获取回调；返回租约 id。
// 回调失败时整个认领事务回滚，任务保持可认领。
type AcquireFunc func(ctx context.Context, t *Task) (leaseID int64, err error)

// RenewFunc Heartbeat 事务内的租约续期回调
type RenewFunc func(ctx context.Context, t *Task) error

// Store 任务持久化。认领/心跳/完成都在行锁事务内校验归属与心跳期限，
// 过期检查用存储端时钟。两库协调（任务 + 租约）采用 claim-then-lease-then-confirm：
// 行锁定 → 暂写认领字段 → 租约回调 → 提交；回调失败则回滚。
type Store interface {
	// Create 插入新任务（scheduled_at = 存储端 now）
	Create(ctx context.Context, data json.RawMessage) (*Task, error)
	// Get 按 id 查询
	Get(ctx context.Context, id int64) (*Task, error)
	// List 全量列出（按 id 升序）
	List(ctx context.Context) ([]Task, error)
	// ListStarted 已开始未完成的任务
	ListStarted(ctx context.Context) ([]Task, error)
	// ListProcessed 已完成的任务
	ListProcessed(ctx context.Context) ([]Task, error)
	// CountBacklog 返回 scheduled 与 abandoned 的数量（巡检用）
	CountBacklog(ctx context.Context) (scheduled int64, abandoned int64, err error)

	// ClaimNext 行锁选出最小 id 的可认领任务，暂写认领字段后执行 acquire 回调，
	// 成功则记录租约 id 并提交；无可认领返回 ErrNoTask。reclaimed 表示这次认领
	// 覆盖了一个心跳超期的旧认领。
	ClaimNext(ctx context.Context, processor string, ttl time.Duration, acquire AcquireFunc) (t *Task, reclaimed bool, err error)
	// Heartbeat 行锁校验归属与心跳期限，执行 renew 回调后推进
	// last_heartbeat_at / must_heartbeat_before；校验失败返回 ErrNotOwner
	Heartbeat(ctx context.Context, id int64, processor string, ttl time.Duration, renew RenewFunc) (*Task, error)
	// Complete 行锁校验归属与心跳期限后写 processed_at 与 task_output（仅一次）；
	// 返回该任务记录的租约 id，由调用方在提交后尽力释放
	Complete(ctx context.Context, id int64, processor string, output json.RawMessage) (leaseID int64, err error)
	// Abandon 行锁校验 processor 后将心跳期限置为已过期并清除 processor/租约字段，
	// 任务立即回到可认领；返回原租约 id
	Abandon(ctx context.Context, id int64, processor string) (leaseID int64, err error)
}
