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

// Package leaseclient 租约服务的 HTTP 客户端。Service 是无状态封装（Dispatcher 侧），
// Handle 是带自动续期的单资源句柄（Worker / 单实例守护侧）。
// 错误哨兵与 internal/lease 共用：409 → ErrHeld/ErrLost，404 → ErrNotFound。
package leaseclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
)

// Service 无状态客户端；所有调用超时必须小于 LEASE_TTL/2，避免一次卡住的调用吃掉租约
type Service struct {
	http *resty.Client
}

// NewService 创建客户端；timeout <= 0 时默认 10s
func NewService(baseURL string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type leaseRequest struct {
	Resource string `json:"resource"`
	Holder   string `json:"holder"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Acquire POST /leases；已被持有返回 lease.ErrHeld
func (s *Service) Acquire(ctx context.Context, resource, holder string) (*lease.Lease, error) {
	var out lease.Lease
	var errOut errorBody
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(leaseRequest{Resource: resource, Holder: holder}).
		SetResult(&out).
		SetError(&errOut).
		Post("/leases")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		return &out, nil
	case http.StatusConflict:
		return nil, lease.ErrHeld
	case http.StatusNotFound:
		return nil, lease.ErrNotFound
	default:
		return nil, fmt.Errorf("acquire %q: %s (%s)", resource, resp.Status(), errOut.Error)
	}
}

// Renew PUT /leases/renew；409 统一按失去租约处理（续期后的任何冲突对调用方都是终态）
func (s *Service) Renew(ctx context.Context, resource, holder string) (*lease.Lease, error) {
	var out lease.Lease
	var errOut errorBody
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(leaseRequest{Resource: resource, Holder: holder}).
		SetResult(&out).
		SetError(&errOut).
		Put("/leases/renew")
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode() {
	case http.StatusCreated:
		return &out, nil
	case http.StatusConflict:
		return nil, lease.ErrLost
	case http.StatusNotFound:
		return nil, lease.ErrNotFound
	default:
		return nil, fmt.Errorf("renew %q: %s (%s)", resource, resp.Status(), errOut.Error)
	}
}

// Release DELETE /leases/{id}；服务端幂等
func (s *Service) Release(ctx context.Context, id int64) error {
	var errOut errorBody
	resp, err := s.http.R().
		SetContext(ctx).
		SetError(&errOut).
		Delete("/leases/" + strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return lease.ErrNotFound
	default:
		return fmt.Errorf("release %d: %s (%s)", id, resp.Status(), errOut.Error)
	}
}

// ListByState GET /leases?state=...
func (s *Service) ListByState(ctx context.Context, state lease.State) ([]lease.Lease, error) {
	var out []lease.Lease
	var errOut errorBody
	resp, err := s.http.R().
		SetContext(ctx).
		SetQueryParam("state", string(state)).
		SetResult(&out).
		SetError(&errOut).
		Get("/leases")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("list leases: %s (%s)", resp.Status(), errOut.Error)
	}
	return out, nil
}
