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

package app

import (
	"log/slog"
	"os"

	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"github.com/abouchard11/sports-betting-analytics/pkg/log"
)

// SetupHertzLogging 将 Hertz 的框架日志（访问日志等）切到 slog，级别跟随配置
func (b *Bootstrap) SetupHertzLogging() {
	levelVar := &slog.LevelVar{}
	if b.Config != nil {
		levelVar.Set(log.ParseLevel(b.Config.Log.Level))
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(os.Stdout),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)
}

// SetupTracing 按配置启用 OpenTelemetry；返回 server 选项、中间件与 provider
//（未启用时均为 nil）。provider 由调用方在 Shutdown 时关闭。
func (b *Bootstrap) SetupTracing(defaultServiceName string) ([]hertzconfig.Option, *hertztracing.Config, provider.OtelProvider) {
	if b.Config == nil || !b.Config.Monitoring.Tracing.Enable {
		return nil, nil, nil
	}
	serviceName := b.Config.Monitoring.Tracing.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	exportEndpoint := b.Config.Monitoring.Tracing.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if exportEndpoint == "" {
		return nil, nil, nil
	}
	opts := []provider.Option{
		provider.WithServiceName(serviceName),
		provider.WithExportEndpoint(exportEndpoint),
	}
	if b.Config.Monitoring.Tracing.Insecure {
		opts = append(opts, provider.WithInsecure())
	}
	p := provider.NewOpenTelemetryProvider(opts...)
	tracerOpt, cfg := hertztracing.NewServerTracer()
	b.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	return []hertzconfig.Option{tracerOpt}, cfg, p
}
