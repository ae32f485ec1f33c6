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

// Package taskclient Dispatcher 服务的 HTTP 客户端（Worker 侧）。
// 错误哨兵与 internal/task 共用：409 → ErrNotOwner，404 → ErrNotFound，204 → ErrNoTask。
package taskclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/abouchard11/sports-betting-analytics/internal/task"
)

// Client Dispatcher HTTP 客户端
type Client struct {
	http *resty.Client
}

// NewClient 创建客户端；timeout <= 0 时默认 10s（必须小于 LEASE_TTL/2）
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type processorRequest struct {
	Processor string `json:"processor"`
}

type completeRequest struct {
	Processor string          `json:"processor"`
	Output    json.RawMessage `json:"output,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Next POST /tasks/next；无任务（204）返回 task.ErrNoTask
func (c *Client) Next(ctx context.Context, processor string) (*task.Task, error) {
	var out task.Task
	var errOut errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(processorRequest{Processor: processor}).
		SetResult(&out).
		SetError(&errOut).
		Post("/tasks/next")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		return &out, nil
	case http.StatusNoContent:
		return nil, task.ErrNoTask
	case http.StatusConflict:
		return nil, task.ErrNotOwner
	default:
		return nil, fmt.Errorf("next task: %s (%s)", resp.Status(), errOut.Error)
	}
}

// Heartbeat PUT /tasks/{id}/heartbeat；返回新的心跳期限
func (c *Client) Heartbeat(ctx context.Context, id int64, processor string) (*task.Task, error) {
	var out task.Task
	var errOut errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(processorRequest{Processor: processor}).
		SetResult(&out).
		SetError(&errOut).
		Put("/tasks/" + strconv.FormatInt(id, 10) + "/heartbeat")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		return &out, nil
	case http.StatusConflict:
		return nil, task.ErrNotOwner
	case http.StatusNotFound:
		return nil, task.ErrNotFound
	default:
		return nil, fmt.Errorf("heartbeat task %d: %s (%s)", id, resp.Status(), errOut.Error)
	}
}

// Complete PUT /tasks/{id}/complete
func (c *Client) Complete(ctx context.Context, id int64, processor string, output json.RawMessage) error {
	var errOut errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(completeRequest{Processor: processor, Output: output}).
		SetError(&errOut).
		Put("/tasks/" + strconv.FormatInt(id, 10) + "/complete")
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return task.ErrNotOwner
	case http.StatusNotFound:
		return task.ErrNotFound
	default:
		return fmt.Errorf("complete task %d: %s (%s)", id, resp.Status(), errOut.Error)
	}
}

// Abandon PUT /tasks/{id}/abandon
func (c *Client) Abandon(ctx context.Context, id int64, processor string) error {
	var errOut errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(processorRequest{Processor: processor}).
		SetError(&errOut).
		Put("/tasks/" + strconv.FormatInt(id, 10) + "/abandon")
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return task.ErrNotOwner
	case http.StatusNotFound:
		return task.ErrNotFound
	default:
		return fmt.Errorf("abandon task %d: %s (%s)", id, resp.Status(), errOut.Error)
	}
}
