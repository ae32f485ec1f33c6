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
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/app/worker"
	"github.com/abouchard11/sports-betting-analytics/pkg/config"
	pkglog "github.com/abouchard11/sports-betting-analytics/pkg/log"
	"github.com/abouchard11/sports-betting-analytics/pkg/tracing"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Worker.TaskServiceURL == "" {
		log.Fatal("缺少 Dispatcher 地址（worker.task_service_url 或 TASK_SERVICE_URL）")
	}

	logger, err := pkglog.NewLogger(&pkglog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}

	// Worker 进程没有 Hertz 服务，直接初始化 OTLP tracer
	if cfg.Monitoring.Tracing.Enable && cfg.Monitoring.Tracing.ExportEndpoint != "" {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    "worker",
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			log.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	app, err := worker.NewApp(cfg, logger, analyzeEvent)
	if err != nil {
		log.Fatalf("初始化 Worker 失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	app.Start(ctx)
	logger.Info("worker started", "worker_id", app.WorkerID(), "dispatcher", cfg.Worker.TaskServiceURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Warn("关闭超时", "err", err)
	}
	logger.Info("worker stopped")
}
