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

// Package leaseapp 租约服务进程装配
package leaseapp

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "github.com/abouchard11/sports-betting-analytics/internal/api/http"
	"github.com/abouchard11/sports-betting-analytics/internal/api/http/middleware"
	"github.com/abouchard11/sports-betting-analytics/internal/app"
	"github.com/abouchard11/sports-betting-analytics/internal/lease"
)

// App 租约服务应用
type App struct {
	bootstrap    *app.Bootstrap
	manager      *lease.Manager
	router       *apihttp.LeaseRouter
	hertz        *server.Hertz
	otelProvider provider.OtelProvider
}

// NewApp 装配租约服务：存储（memory/postgres）→ Manager → 路由
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	var store lease.Store
	if bootstrap.Pool != nil {
		if err := lease.EnsureLeasesSchema(ctx, bootstrap.Pool); err != nil {
			return nil, err
		}
		store = lease.NewPostgresStore(bootstrap.Pool)
	} else {
		store = lease.NewMemoryStore()
	}

	manager := lease.NewManager(store, bootstrap.Config.Lease.TTLDuration(), bootstrap.Logger)
	router := apihttp.NewLeaseRouter(apihttp.NewLeaseHandler(manager), middleware.NewMiddleware())
	return &App{bootstrap: bootstrap, manager: manager, router: router}, nil
}

// Manager 返回租约管理器
func (a *App) Manager() *lease.Manager {
	return a.manager
}

// Run 启动 HTTP 服务（阻塞）
func (a *App) Run(addr string) error {
	a.bootstrap.SetupHertzLogging()
	opts, tracingCfg, p := a.bootstrap.SetupTracing("leases")
	a.otelProvider = p
	a.hertz = a.router.Build(addr, opts...)
	if tracingCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracingCfg))
	}
	a.bootstrap.Logger.Info("lease service listening", "addr", addr, "ttl", a.manager.TTL())
	return a.hertz.Run()
}

// Shutdown 优雅退出
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.hertz != nil {
		err = a.hertz.Shutdown(ctx)
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	a.bootstrap.Close()
	return err
}
