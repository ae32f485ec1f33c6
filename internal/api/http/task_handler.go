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
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/abouchard11/sports-betting-analytics/internal/task"
	pkgerrors "github.com/abouchard11/sports-betting-analytics/pkg/errors"
)

// TaskHandler Dispatcher 服务 HTTP 处理器
type TaskHandler struct {
	dispatcher *task.Dispatcher
}

// NewTaskHandler 创建处理器
func NewTaskHandler(dispatcher *task.Dispatcher) *TaskHandler {
	return &TaskHandler{dispatcher: dispatcher}
}

type processorRequest struct {
	Processor string `json:"processor"`
}

type completeRequest struct {
	Processor string          `json:"processor"`
	Output    json.RawMessage `json:"output"`
}

// Next POST /tasks/next：202 任务 / 204 无任务 / 409 认领竞争输掉
func (h *TaskHandler) Next(ctx context.Context, c *app.RequestContext) {
	var req processorRequest
	if err := c.BindJSON(&req); err != nil || req.Processor == "" {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空"))
		return
	}
	t, err := h.dispatcher.ClaimNext(ctx, req.Processor)
	switch {
	case err == nil:
		c.JSON(consts.StatusAccepted, t)
	case errors.Is(err, task.ErrNoTask):
		c.SetStatusCode(consts.StatusNoContent)
	case pkgerrors.IsConflict(err):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, pkgerrors.ErrInvalidArg):
		writeError(c, consts.StatusBadRequest, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

func (h *TaskHandler) taskID(c *app.RequestContext) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "id 必须是整数"))
		return 0, false
	}
	return id, true
}

// Heartbeat PUT /tasks/:id/heartbeat
func (h *TaskHandler) Heartbeat(ctx context.Context, c *app.RequestContext) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	var req processorRequest
	if err := c.BindJSON(&req); err != nil || req.Processor == "" {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空"))
		return
	}
	t, err := h.dispatcher.Heartbeat(ctx, id, req.Processor)
	switch {
	case err == nil:
		c.JSON(consts.StatusAccepted, t)
	case errors.Is(err, task.ErrNotOwner):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, task.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrInvalidArg):
		writeError(c, consts.StatusBadRequest, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// Complete PUT /tasks/:id/complete
func (h *TaskHandler) Complete(ctx context.Context, c *app.RequestContext) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	var req completeRequest
	if err := c.BindJSON(&req); err != nil || req.Processor == "" {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空"))
		return
	}
	err := h.dispatcher.Complete(ctx, id, req.Processor, req.Output)
	switch {
	case err == nil:
		c.JSON(consts.StatusAccepted, map[string]interface{}{"id": id, "status": "completed"})
	case errors.Is(err, task.ErrNotOwner):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, task.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	case errors.Is(err, pkgerrors.ErrInvalidArg):
		writeError(c, consts.StatusBadRequest, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// Abandon PUT /tasks/:id/abandon
func (h *TaskHandler) Abandon(ctx context.Context, c *app.RequestContext) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	var req processorRequest
	if err := c.BindJSON(&req); err != nil || req.Processor == "" {
		writeError(c, consts.StatusBadRequest, pkgerrors.Wrap(pkgerrors.ErrInvalidArg, "processor 不能为空"))
		return
	}
	err := h.dispatcher.Abandon(ctx, id, req.Processor)
	switch {
	case err == nil:
		c.JSON(consts.StatusAccepted, map[string]interface{}{"id": id, "status": "abandoned"})
	case errors.Is(err, task.ErrNotOwner):
		writeError(c, consts.StatusConflict, err)
	case errors.Is(err, task.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}

// List GET /tasks
func (h *TaskHandler) List(ctx context.Context, c *app.RequestContext) {
	h.writeTasks(c, func() ([]task.Task, error) { return h.dispatcher.Store().List(ctx) })
}

// ListStarted GET /tasks/started
func (h *TaskHandler) ListStarted(ctx context.Context, c *app.RequestContext) {
	h.writeTasks(c, func() ([]task.Task, error) { return h.dispatcher.Store().ListStarted(ctx) })
}

// ListProcessed GET /tasks/processed
func (h *TaskHandler) ListProcessed(ctx context.Context, c *app.RequestContext) {
	h.writeTasks(c, func() ([]task.Task, error) { return h.dispatcher.Store().ListProcessed(ctx) })
}

func (h *TaskHandler) writeTasks(c *app.RequestContext, load func() ([]task.Task, error)) {
	tasks, err := load()
	if err != nil {
		writeError(c, consts.StatusInternalServerError, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	c.JSON(consts.StatusOK, tasks)
}

// Get GET /tasks/:id
func (h *TaskHandler) Get(ctx context.Context, c *app.RequestContext) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	t, err := h.dispatcher.Store().Get(ctx, id)
	switch {
	case err == nil:
		c.JSON(consts.StatusOK, t)
	case errors.Is(err, task.ErrNotFound):
		writeError(c, consts.StatusNotFound, err)
	default:
		writeError(c, consts.StatusInternalServerError, err)
	}
}
