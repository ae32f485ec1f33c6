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
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"github.com/abouchard11/sports-betting-analytics/internal/api/http/middleware"
)

// LeaseRouter 租约服务路由器（Hertz）
type LeaseRouter struct {
	handler    *LeaseHandler
	middleware *middleware.Middleware
}

// NewLeaseRouter 创建租约服务路由器
func NewLeaseRouter(handler *LeaseHandler, mw *middleware.Middleware) *LeaseRouter {
	return &LeaseRouter{handler: handler, middleware: mw}
}

// Build 创建 Hertz 引擎并注册路由与中间件；opts 可传入 server.WithTracer 等
func (r *LeaseRouter) Build(addr string, opts ...config.Option) *server.Hertz {
	allOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(allOpts...)

	h.Use(r.middleware.AccessLog())
	h.Use(r.middleware.CORS())

	h.POST("/leases", r.handler.Create)
	h.PUT("/leases/renew", r.handler.Renew)
	h.DELETE("/leases/:id", r.handler.Release)
	h.GET("/leases", r.handler.List)

	h.GET("/healthz", Health)
	h.GET("/metrics", Metrics)
	return h
}

// TaskRouter Dispatcher 服务路由器（Hertz）
type TaskRouter struct {
	handler    *TaskHandler
	middleware *middleware.Middleware
}

// NewTaskRouter 创建 Dispatcher 服务路由器
func NewTaskRouter(handler *TaskHandler, mw *middleware.Middleware) *TaskRouter {
	return &TaskRouter{handler: handler, middleware: mw}
}

// Build 创建 Hertz 引擎并注册路由与中间件；静态路由优先于命名参数，
// /tasks/started 与 /tasks/:id 可以共存
func (r *TaskRouter) Build(addr string, opts ...config.Option) *server.Hertz {
	allOpts := append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(allOpts...)

	h.Use(r.middleware.AccessLog())
	h.Use(r.middleware.CORS())

	h.POST("/tasks/next", r.handler.Next)
	h.PUT("/tasks/:id/heartbeat", r.handler.Heartbeat)
	h.PUT("/tasks/:id/complete", r.handler.Complete)
	h.PUT("/tasks/:id/abandon", r.handler.Abandon)
	h.GET("/tasks", r.handler.List)
	h.GET("/tasks/started", r.handler.ListStarted)
	h.GET("/tasks/processed", r.handler.ListProcessed)
	h.GET("/tasks/:id", r.handler.Get)

	h.GET("/healthz", Health)
	h.GET("/metrics", Metrics)
	return h
}
