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
)

var (
	// ErrHeld acquire 时该 resource 已有 active 租约
	ErrHeld = errors.New("lease: resource held by an active lease")
	// ErrLost renew 时本 holder 的租约已过期；调用方必须停止续期并重新 acquire
	ErrLost = errors.New("lease: lease expired before renewal")
	// ErrNotFound renew/release 引用了不存在的 resource/id
	ErrNotFound = errors.New("lease: no such lease")
)

// Store 租约持久化。同一 resource 的并发操作由实现层线性化（Postgres 行锁 / 内存互斥锁）；
// "unique active per resource" 不靠 schema 约束，靠 lock → check → write 事务模式保证。
type Store interface {
	// Acquire 锁定 resource 的全部既有行，任一行 active 则返回 ErrHeld；否则插入新行，
	// created_at 与 expires_at 均取存储端时钟（now、now+ttl）
	Acquire(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error)
	// Renew 锁定 resource 的行后续期本 holder 的 active 行；本 holder 的行已过期返回 ErrLost，
	// 其它 holder 持有 active 行返回 ErrHeld，resource 无任何行返回 ErrNotFound
	Renew(ctx context.Context, resource, holder string, ttl time.Duration) (*Lease, error)
	// Release 置 released_at（幂等：已释放的行再次释放仍返回成功）；未知 id 返回 ErrNotFound
	Release(ctx context.Context, id int64) error
	// Get 按 id 查询
	Get(ctx context.Context, id int64) (*Lease, error)
	// ListByState 按派生状态过滤，按 id 升序返回
	ListByState(ctx context.Context, state State) ([]Lease, error)
}
