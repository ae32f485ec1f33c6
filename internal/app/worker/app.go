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

// Package worker Worker 进程：轮询认领 → 心跳续约 → 执行 → 完成/放弃。
// 任何一次 Conflict 都意味着任务已失去：停掉心跳循环，丢弃任务，绝不再上报。
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abouchard11/sports-betting-analytics/internal/task"
	"github.com/abouchard11/sports-betting-analytics/internal/taskclient"
	"github.com/abouchard11/sports-betting-analytics/pkg/config"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
	"github.com/abouchard11/sports-betting-analytics/pkg/metrics"
)

// TaskClient Worker 对 Dispatcher 的依赖（taskclient.Client 满足；测试可注入假实现）
type TaskClient interface {
	Next(ctx context.Context, processor string) (*task.Task, error)
	Heartbeat(ctx context.Context, id int64, processor string) (*task.Task, error)
	Complete(ctx context.Context, id int64, processor string, output json.RawMessage) error
	Abandon(ctx context.Context, id int64, processor string) error
}

// Executor 不透明任务体的执行函数；由 cmd/worker 注入
type Executor func(ctx context.Context, t *task.Task) (json.RawMessage, error)

// App Worker 应用：单执行循环 + 独立心跳循环共享一个任务
type App struct {
	workerID       string
	client         TaskClient
	execute        Executor
	pollInterval   time.Duration
	heartbeatEvery time.Duration
	logger         *log.Logger
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// NewApp 创建 Worker；cfg.Worker.ID 为空时生成 worker-<uuid>。
// 心跳间隔取自配置并校验过 2*interval <= ttl（LeaseConfig.Validate）。
func NewApp(cfg *config.Config, logger *log.Logger, execute Executor) (*App, error) {
	if execute == nil {
		return nil, errors.New("worker: executor 不能为空")
	}
	workerID := cfg.Worker.ID
	if workerID == "" {
		workerID = "worker-" + uuid.New().String()
	}
	client := taskclient.NewClient(cfg.Worker.TaskServiceURL, cfg.Worker.TimeoutDuration())
	return newApp(workerID, client, execute, cfg.Worker.PollDuration(), cfg.Lease.HeartbeatDuration(), logger), nil
}

func newApp(workerID string, client TaskClient, execute Executor, poll, heartbeat time.Duration, logger *log.Logger) *App {
	return &App{
		workerID:       workerID,
		client:         client,
		execute:        execute,
		pollInterval:   poll,
		heartbeatEvery: heartbeat,
		logger:         logger.With("worker_id", workerID),
		stopCh:         make(chan struct{}),
	}
}

// WorkerID 返回本进程的 processor 标识
func (a *App) WorkerID() string {
	return a.workerID
}

// Start 启动认领循环
func (a *App) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runLoop(ctx)
	}()
}

// Shutdown 停止认领并等待在途任务结束
func (a *App) Shutdown(ctx context.Context) error {
	close(a.stopCh)
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopCh:
			return
		default:
		}

		t, err := a.client.Next(ctx, a.workerID)
		switch {
		case err == nil:
			a.runTask(ctx, t)
		case errors.Is(err, task.ErrNoTask), errors.Is(err, task.ErrNotOwner):
			// 无任务或认领竞争输掉：等一轮再来
			a.sleep(ctx)
		default:
			a.logger.Warn("poll failed", "err", err)
			a.sleep(ctx)
		}
	}
}

func (a *App) sleep(ctx context.Context) {
	timer := time.NewTimer(a.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-a.stopCh:
	case <-timer.C:
	}
}

// runTask 执行一个任务；所有退出路径（含 panic）都先停心跳再上报
func (a *App) runTask(ctx context.Context, t *task.Task) {
	a.logger.Info("task started", "task_id", t.ID)
	metrics.WorkerBusy.WithLabelValues(a.workerID).Set(1)
	defer metrics.WorkerBusy.WithLabelValues(a.workerID).Set(0)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	lost := make(chan struct{})
	go a.heartbeatLoop(hbCtx, t.ID, hbDone, lost)

	output, execErr := a.executeSafely(ctx, t)

	// 先协作式停掉心跳循环，迟到的续约不可能与下面的上报交叠
	stopHeartbeat()
	<-hbDone

	select {
	case <-lost:
		// 租约已失去：任务不再属于我们，不得上报任何结果
		a.logger.Warn("task forfeited, dropping result", "task_id", t.ID)
		return
	default:
	}

	if execErr != nil {
		a.logger.Warn("task failed, abandoning", "task_id", t.ID, "err", execErr)
		if err := a.client.Abandon(ctx, t.ID, a.workerID); err != nil {
			a.logger.Warn("abandon failed", "task_id", t.ID, "err", err)
		}
		return
	}
	if err := a.client.Complete(ctx, t.ID, a.workerID, output); err != nil {
		if errors.Is(err, task.ErrNotOwner) {
			a.logger.Warn("completion rejected, task was lost", "task_id", t.ID)
		} else {
			a.logger.Warn("complete failed", "task_id", t.ID, "err", err)
		}
		return
	}
	a.logger.Info("task completed", "task_id", t.ID)
}

// heartbeatLoop 周期续约；Conflict/NotFound 置 lost 并退出
func (a *App) heartbeatLoop(ctx context.Context, taskID int64, done chan<- struct{}, lost chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := a.client.Heartbeat(ctx, taskID, a.workerID)
			switch {
			case err == nil:
			case errors.Is(err, task.ErrNotOwner), errors.Is(err, task.ErrNotFound):
				a.logger.Warn("heartbeat rejected, stopping renewer", "task_id", taskID, "err", err)
				close(lost)
				return
			default:
				// 瞬时故障：下一轮还有机会，间隔 < TTL/2 容得下一次丢失
				a.logger.Warn("heartbeat error", "task_id", taskID, "err", err)
			}
		}
	}
}

func (a *App) executeSafely(ctx context.Context, t *task.Task) (output json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return a.execute(ctx, t)
}
