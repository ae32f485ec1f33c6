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

package leaseclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
)

// Handle 单资源租约句柄。句柄内互斥锁串行化所有调用：迟到的续期响应不可能
// 与用户侧 Release 交叠改写状态。续期间隔必须严格小于 TTL/2，容忍一次丢失。
// 失去租约对句柄是终态：自动续期停止，后续 Renew 直接报错，必须重新 Acquire。
type Handle struct {
	mu       sync.Mutex
	svc      *Service
	resource string
	holder   string

	id       int64
	acquired bool
	lost     bool

	renewCancel context.CancelFunc
	renewDone   chan struct{}
}

// NewHandle 创建句柄；svc 可在多个句柄间共享
func NewHandle(svc *Service, resource, holder string) *Handle {
	return &Handle{svc: svc, resource: resource, holder: holder}
}

// ID 当前持有的租约 id；未持有时为 0
func (h *Handle) ID() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

// Lost 句柄是否已失去租约（终态）
func (h *Handle) Lost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lost
}

// Acquire 获取租约并记录 id；成功后清除 lost 状态
func (h *Handle) Acquire(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, err := h.svc.Acquire(ctx, h.resource, h.holder)
	if err != nil {
		return err
	}
	h.id = l.ID
	h.acquired = true
	h.lost = false
	return nil
}

// Renew 续期；失去租约返回 lease.ErrLost 并置句柄为终态
func (h *Handle) Renew(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.renewLocked(ctx)
}

func (h *Handle) renewLocked(ctx context.Context) error {
	if h.lost {
		return lease.ErrLost
	}
	if !h.acquired {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "renew before acquire")
	}
	_, err := h.svc.Renew(ctx, h.resource, h.holder)
	if err == nil {
		return nil
	}
	// Conflict/NotFound 都意味着这个句柄对资源的占有已不可证明；
	// 其它错误（超时、网络）不改变状态，下一次续期仍可成功
	if errors.Is(err, lease.ErrLost) || errors.Is(err, lease.ErrHeld) || errors.Is(err, lease.ErrNotFound) {
		h.lost = true
	}
	return err
}

// Release 释放当前租约（幂等）；不触碰自动续期，调用方先 StopAutoRenew
func (h *Handle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.acquired {
		return nil
	}
	if err := h.svc.Release(ctx, h.id); err != nil {
		return err
	}
	h.acquired = false
	return nil
}

// StartAutoRenew 启动周期续期。interval 必须 > 0 且应小于 TTL/2；
// 失去租约后循环自行退出。重复调用前必须先 StopAutoRenew。
func (h *Handle) StartAutoRenew(interval time.Duration) error {
	if interval <= 0 {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "renew interval 必须为正")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.renewCancel != nil {
		return pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "auto renew already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.renewCancel = cancel
	h.renewDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.mu.Lock()
				err := h.renewLocked(ctx)
				lost := h.lost
				h.mu.Unlock()
				if err != nil && lost {
					return
				}
			}
		}
	}()
	return nil
}

// StopAutoRenew 取消续期循环并等待其退出；不释放租约
func (h *Handle) StopAutoRenew() {
	h.mu.Lock()
	cancel := h.renewCancel
	done := h.renewDone
	h.renewCancel = nil
	h.renewDone = nil
	h.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}
