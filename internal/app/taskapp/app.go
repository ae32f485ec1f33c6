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

// Package taskapp Dispatcher 服务进程装配
package taskapp

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "github.com/abouchard11/sports-betting-analytics/internal/api/http"
	"github.com/abouchard11/sports-betting-analytics/internal/api/http/middleware"
	"github.com/abouchard11/sports-betting-analytics/internal/app"
	"github.com/abouchard11/sports-betting-analytics/internal/lease"
	"github.com/abouchard11/sports-betting-analytics/internal/leaseclient"
	"github.com/abouchard11/sports-betting-analytics/internal/task"
)

// App Dispatcher 服务应用。租约依赖二选一：
// 配置了 dispatcher.leases_url（或 SERVICE_LEASES_URL）时走 HTTP 租约服务；
// 否则进程内直连租约存储（单进程部署）。
type App struct {
	bootstrap    *app.Bootstrap
	dispatcher   *task.Dispatcher
	sweeper      *task.Sweeper
	router       *apihttp.TaskRouter
	hertz        *server.Hertz
	otelProvider provider.OtelProvider
	sweepCancel  context.CancelFunc
}

// NewApp 装配 Dispatcher：任务存储 → 租约服务 → Dispatcher → 巡检 → 路由
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config
	ttl := cfg.Lease.TTLDuration()

	var store task.Store
	if bootstrap.Pool != nil {
		if err := task.EnsureTasksSchema(ctx, bootstrap.Pool); err != nil {
			return nil, err
		}
		store = task.NewPostgresStore(bootstrap.Pool)
	} else {
		store = task.NewMemoryStore()
	}

	var leases task.LeaseService
	var lister task.LeaseLister
	if cfg.Dispatcher.LeasesURL != "" {
		// 调用超时必须小于 TTL/2，卡住的调用不能静默吃掉租约
		svc := leaseclient.NewService(cfg.Dispatcher.LeasesURL, ttl/3)
		leases = svc
		lister = svc
	} else {
		var leaseStore lease.Store
		if bootstrap.Pool != nil {
			if err := lease.EnsureLeasesSchema(ctx, bootstrap.Pool); err != nil {
				return nil, err
			}
			leaseStore = lease.NewPostgresStore(bootstrap.Pool)
		} else {
			leaseStore = lease.NewMemoryStore()
		}
		manager := lease.NewManager(leaseStore, ttl, bootstrap.Logger)
		leases = manager
		lister = manager
	}

	dispatcher := task.NewDispatcher(store, leases, ttl, bootstrap.Logger)
	sweeper := task.NewSweeper(store, lister, cfg.Dispatcher.SweepDuration(), bootstrap.Logger)
	router := apihttp.NewTaskRouter(apihttp.NewTaskHandler(dispatcher), middleware.NewMiddleware())
	return &App{bootstrap: bootstrap, dispatcher: dispatcher, sweeper: sweeper, router: router}, nil
}

// Dispatcher 返回派发器
func (a *App) Dispatcher() *task.Dispatcher {
	return a.dispatcher
}

// Run 启动巡检与 HTTP 服务（阻塞）
func (a *App) Run(addr string) error {
	a.bootstrap.SetupHertzLogging()
	opts, tracingCfg, p := a.bootstrap.SetupTracing("tasks")
	a.otelProvider = p

	sweepCtx, cancel := context.WithCancel(context.Background())
	a.sweepCancel = cancel
	a.sweeper.Start(sweepCtx)

	a.hertz = a.router.Build(addr, opts...)
	if tracingCfg != nil {
		a.hertz.Use(hertztracing.ServerMiddleware(tracingCfg))
	}
	a.bootstrap.Logger.Info("task dispatcher listening", "addr", addr, "ttl", a.dispatcher.TTL())
	return a.hertz.Run()
}

// Shutdown 优雅退出：先停巡检，再关 HTTP
func (a *App) Shutdown(ctx context.Context) error {
	if a.sweepCancel != nil {
		a.sweepCancel()
		a.sweeper.Stop()
	}
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
