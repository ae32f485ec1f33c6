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

// Package app 统一初始化：供 leases / tasks / worker 进程复用，避免在 cmd 内写业务
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abouchard11/sports-betting-analytics/pkg/config"
	"github.com/abouchard11/sports-betting-analytics/pkg/log"
)

// Bootstrap 进程级共享资源：配置、日志、（可选的）pgx 连接池
type Bootstrap struct {
	Config *config.Config
	Logger *log.Logger
	Pool   *pgxpool.Pool // store.type=postgres 时非 nil
}

// NewBootstrap 根据配置创建 Bootstrap；postgres 时建池并 Ping
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	b := &Bootstrap{Config: cfg, Logger: logger}
	if cfg != nil && cfg.Store.Type == "postgres" {
		if cfg.Store.DSN == "" {
			return nil, fmt.Errorf("store.type=postgres 需要 DSN（store.dsn 或 DATABASE_URL）")
		}
		pool, err := pgxpool.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("创建连接池失败: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("数据库不可达: %w", err)
		}
		b.Pool = pool
	}
	return b, nil
}

// Close 释放进程级资源
func (b *Bootstrap) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// Addr 监听地址（host:port）
func (b *Bootstrap) Addr() string {
	host := ""
	port := 8080
	if b.Config != nil {
		host = b.Config.Service.Host
		if b.Config.Service.Port > 0 {
			port = b.Config.Service.Port
		}
	}
	return fmt.Sprintf("%s:%d", host, port)
}
