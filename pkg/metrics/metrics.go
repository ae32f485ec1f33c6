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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 Lease 服务 / Dispatcher / Worker 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		LeaseAcquireTotal, LeaseRenewTotal, LeaseReleaseTotal, LeaseConflictTotal,
		TaskClaimTotal, TaskHeartbeatTotal, TaskCompleteTotal, TaskReclaimTotal,
		TaskBacklog, TaskAbandoned, LeaseActive,
		WorkerBusy,
	)
}

// LeaseAcquireTotal 租约获取次数（按结果）
var LeaseAcquireTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leased_lease_acquire_total",
		Help: "租约获取次数（按结果）",
	},
	[]string{"result"}, // acquired | conflict | error
)

// LeaseRenewTotal 租约续期次数（按结果）
var LeaseRenewTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leased_lease_renew_total",
		Help: "租约续期次数（按结果）",
	},
	[]string{"result"}, // renewed | lost | not_found | error
)

// LeaseReleaseTotal 租约释放次数
var LeaseReleaseTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "leased_lease_release_total",
		Help: "租约释放次数（含幂等重复释放）",
	},
)

// LeaseConflictTotal 租约冲突总数（acquire 被已持有租约拒绝 + renew 过期丢失 + renew 时资源被其它 holder 持有）
var LeaseConflictTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "leased_lease_conflict_total",
		Help: "租约冲突总数",
	},
)

// TaskClaimTotal 任务认领次数（按结果）
var TaskClaimTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leased_task_claim_total",
		Help: "任务认领次数（按结果）",
	},
	[]string{"result"}, // claimed | none | conflict | error
)

// TaskHeartbeatTotal 任务心跳次数（按结果）
var TaskHeartbeatTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leased_task_heartbeat_total",
		Help: "任务心跳次数（按结果）",
	},
	[]string{"result"}, // ok | conflict | error
)

// TaskCompleteTotal 任务完成上报次数（按结果）
var TaskCompleteTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "leased_task_complete_total",
		Help: "任务完成上报次数（按结果）",
	},
	[]string{"result"}, // ok | conflict | error
)

// TaskReclaimTotal 被回收的任务数（认领到 must_heartbeat_before 已过期的任务）
var TaskReclaimTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "leased_task_reclaim_total",
		Help: "被回收再认领的任务数",
	},
)

// TaskBacklog 未开始任务的积压数（Sweeper 周期刷新）
var TaskBacklog = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "leased_task_backlog",
		Help: "scheduled 状态任务数",
	},
)

// TaskAbandoned 心跳超期待回收的任务数（Sweeper 周期刷新）
var TaskAbandoned = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "leased_task_abandoned",
		Help: "abandoned 状态任务数",
	},
)

// LeaseActive 当前活跃租约数（Sweeper 周期刷新）
var LeaseActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "leased_lease_active",
		Help: "active 状态租约数",
	},
)

// WorkerBusy 当前正在执行任务的 Worker（每 Worker 0/1）
var WorkerBusy = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "leased_worker_busy",
		Help: "当前正在执行任务的 Worker",
	},
	[]string{"worker_id"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz /metrics 复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
