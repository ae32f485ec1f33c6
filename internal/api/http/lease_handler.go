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

package http

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
	"github.com/abouchard11/sports-betting-analytics/pkg/metrics"
)

// 状态码语义是契约的一部分：409 一律表示租约竞争或失去，404 表示实体不存在
func writeError(c *app.RequestContext, status int, err error) {
	c.JSON(status, map[string]string{"error": err.Error()})
}

// Health GET /healthz
func Health(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Metrics GET /metrics（Prometheus 文本格式）
func Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		writeError(c, consts.StatusInternalServerError, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// LeaseHandler 租约服务 HTTP 处理器（仅依赖 Manager，不直接触存储）
type LeaseHandler struct {
	manager *lease.Manager
}

// NewLeaseHandler 创建处理器
func NewLeaseHandler(manager *lease.Manager) *LeaseHandler {
	return &LeaseHandler{manager: manager}
}

type leaseRequest struct {
	Resource string `json:"resource"`
	Holder   string `json:"holder"`
}

// Create POST /leases
func (h *LeaseHandler) Create(ctx context.Context, c *app.RequestContext) {
	var req leaseRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, consts.StatusBadRequest, err)
		return
	}
	l, err := h.manager.Acquire(ctx, req.Resource, req.Holder)
	switch {
	case err == nil:
		c.JSON(consts.StatusCreated, l)
	case errors.Is(err, lease.ErrHeld):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrInvalidArg):
		writeError(c, consts.StatusBadRequest, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// Renew PUT /leases/renew
func (h *LeaseHandler) Renew(ctx context.Context, c *app.RequestContext) {
	var req leaseRequest
	if err := c.BindJSON(&req); err != nil {
		writeError(c, consts.StatusBadRequest, err)
		return
	}
	l, err := h.manager.Renew(ctx, req.Resource, req.Holder)
	switch {
	case err == nil:
		c.JSON(consts.StatusCreated, l)
	case errors.Is(err, lease.ErrLost), errors.Is(err, lease.ErrHeld):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, lease.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrInvalidArg):
		writeError(c, consts.StatusBadRequest, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// Release DELETE /leases/:id
func (h *LeaseHandler) Release(ctx context.Context, c *app.RequestContext) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "id 必须是整数"))
		return
	}
	err = h.manager.Release(ctx, id)
	switch {
	case err == nil:
		c.JSON(consts.StatusOK, map[string]interface{}{"id": id, "status": "released"})
	case errors.Is(err, lease.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// List GET /leases?state={all|active|expired|released|renewed}
func (h *LeaseHandler) List(ctx context.Context, c *app.RequestContext) {
	state, ok := lease.ParseState(c.Query("state"))
	if !ok {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrapf(pkgerrors.ErrInvalidArg, "未知 state %q", c.Query("state")))
		return
	}
	leases, err := h.manager.ListByState(ctx, state)
	if err != nil {
		writeError(c, consts.StatusInternalServerError, err)
		return
	}
	if leases == nil {
		leases = []lease.Lease{}
	}
	c.JSON(consts.StatusOK, leases)
}
