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

package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/abouchard11/sports-betting-analytics/internal/task"
)

// marketEvent 示例任务体：一场赛事某个盘口的赔率快照
type marketEvent struct {
	Sport  string    `json:"sport"`
	Market string    `json:"market"`
	Odds   []float64 `json:"odds"`
}

// marketAnalysis 示例输出：隐含概率与抽水
type marketAnalysis struct {
	Sport              string    `json:"sport"`
	Market             string    `json:"market"`
	ImpliedProbability []float64 `json:"implied_probability"`
	Overround          float64   `json:"overround"`
}

// analyzeEvent 示例工作负载：从赔率算隐含概率与 overround。
// 任务体对调度核心不透明，这里只是 Worker 进程注入的演示 Executor。
func analyzeEvent(ctx context.Context, t *task.Task) (json.RawMessage, error) {
	var ev marketEvent
	if err := json.Unmarshal(t.Data, &ev); err != nil {
		return nil, err
	}
	if len(ev.Odds) == 0 {
		return nil, errors.New("赔率为空")
	}
	analysis := marketAnalysis{
		Sport:              ev.Sport,
		Market:             ev.Market,
		ImpliedProbability: make([]float64, len(ev.Odds)),
	}
	for i, o := range ev.Odds {
		if o <= 1 {
			return nil, errors.New("赔率必须大于 1")
		}
		p := 1 / o
		analysis.ImpliedProbability[i] = p
		analysis.Overround += p
	}
	analysis.Overround -= 1
	return json.Marshal(analysis)
}
