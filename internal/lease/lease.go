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

// Package lease 提供命名资源上的时限租约：同一 resource 任一时刻至多一个 active 租约。
// 过期是被动的：墙钟越过 expires_at 后该行不再 active，无需任何写操作。
package lease

import "time"

// State 租约派生状态；不落库，全部由时间戳 + now 计算
type State string

const (
	StateAll      State = "all"
	StateActive   State = "active"
	StateExpired  State = "expired"
	StateReleased State = "released"
	StateRenewed  State = "renewed"
)

// ParseState 解析查询参数中的状态名；空串按 all 处理
func ParseState(s string) (State, bool) {
	switch State(s) {
	case StateAll, "":
		return StateAll, true
	case StateActive, StateExpired, StateReleased, StateRenewed:
		return State(s), true
	}
	return "", false
}

// Lease 一条租约记录。released_at 一旦写入即终态；重新获取同一 resource 时插入新行，旧行保留为历史。
type Lease struct {
	ID         int64      `json:"id"`
	Resource   string     `json:"resource"`
	Holder     string     `json:"holder"`
	CreatedAt  time.Time  `json:"created_at"`
	RenewedAt  *time.Time `json:"renewed_at,omitempty"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// ActiveAt 该行在 now 时刻是否 active
func (l *Lease) ActiveAt(now time.Time) bool {
	return l.ReleasedAt == nil && l.ExpiresAt.After(now)
}

// ExpiredAt 该行在 now 时刻是否 expired（未释放且已越过 expires_at）
func (l *Lease) ExpiredAt(now time.Time) bool {
	return l.ReleasedAt == nil && !l.ExpiresAt.After(now)
}

// Released 该行是否已释放（终态）
func (l *Lease) Released() bool {
	return l.ReleasedAt != nil
}

// StateAt 返回该行在 now 时刻的派生状态（active/expired/released 三选一）
func (l *Lease) StateAt(now time.Time) State {
	switch {
	case l.Released():
		return StateReleased
	case l.ActiveAt(now):
		return StateActive
	default:
		return StateExpired
	}
}

// MatchesAt 该行在 now 时刻是否落入 state 过滤；renewed = active 且发生过续期
func (l *Lease) MatchesAt(state State, now time.Time) bool {
	switch state {
	case StateAll:
		return true
	case StateRenewed:
		return l.ActiveAt(now) && l.RenewedAt != nil
	default:
		return l.StateAt(now) == state
	}
}
