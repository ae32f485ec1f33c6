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

// Package task 提供任务存储与派发：认领 → 心跳续期 → 完成/放弃。
// 任务归属与 internal/lease 的租约一一对应：processing 中的任务在资源
// "task:<id>" 上持有同 processor 的 active 租约。
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// State 任务派生状态；不落库，由时间戳 + now 计算
type State string

const (
	StateScheduled  State = "scheduled"
	StateProcessing State = "processing"
	StateAbandoned  State = "abandoned"
	StateCompleted  State = "completed"
)

// Task 一条任务记录；task_data / task_output 对本系统完全不透明
type Task struct {
	ID                  int64           `json:"id"`
	Data                json.RawMessage `json:"task_data"`
	Output              json.RawMessage `json:"task_output,omitempty"`
	ScheduledAt         time.Time       `json:"scheduled_at"`
	StartedAt           *time.Time      `json:"started_at,omitempty"`
	LastHeartbeatAt     *time.Time      `json:"last_heartbeat_at,omitempty"`
	MustHeartbeatBefore *time.Time      `json:"must_heartbeat_before,omitempty"`
	ProcessedAt         *time.Time      `json:"processed_at,omitempty"`
	Processor           *string         `json:"processor,omitempty"`
	LeaseID             *int64          `json:"lease_id,omitempty"`
}

// StateAt 返回该任务在 now 时刻的派生状态
func (t *Task) StateAt(now time.Time) State {
	switch {
	case t.ProcessedAt != nil:
		return StateCompleted
	case t.StartedAt == nil:
		return StateScheduled
	case t.MustHeartbeatBefore != nil && t.MustHeartbeatBefore.After(now):
		return StateProcessing
	default:
		return StateAbandoned
	}
}

// ClaimableAt 该任务在 now 时刻是否可被认领（scheduled 或 abandoned）
func (t *Task) ClaimableAt(now time.Time) bool {
	if t.ProcessedAt != nil {
		return false
	}
	return t.StartedAt == nil || t.MustHeartbeatBefore == nil || !t.MustHeartbeatBefore.After(now)
}

// OwnedBy 该任务当前是否由 processor 持有且心跳未超期
func (t *Task) OwnedBy(processor string, now time.Time) bool {
	return t.ProcessedAt == nil &&
		t.Processor != nil && *t.Processor == processor &&
		t.MustHeartbeatBefore != nil && t.MustHeartbeatBefore.After(now)
}

// ResourceName 任务对应的租约资源名
func ResourceName(id int64) string {
	return fmt.Sprintf("task:%d", id)
}
