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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 租约与心跳默认值；二者必须满足 2*heartbeat <= ttl，保证单次心跳丢失不致过期
const (
	DefaultLeaseTTL          = 30 * time.Second
	DefaultHeartbeatInterval = 15 * time.Second
)

// Config 应用配置结构体（Lease 服务 / Dispatcher / Worker / Generator 共用一套结构，各自加载自己的 yaml）
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Store      StoreConfig      `mapstructure:"store"`
	Lease      LeaseConfig      `mapstructure:"lease"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServiceConfig HTTP 服务配置
type ServiceConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StoreConfig 存储配置
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// LeaseConfig 租约配置
type LeaseConfig struct {
	TTL               string `mapstructure:"ttl"`                // 租约时长，如 "30s"，空则默认 30s
	HeartbeatInterval string `mapstructure:"heartbeat_interval"` // 心跳间隔，如 "15s"，空则默认 15s
}

// DispatcherConfig Dispatcher 服务配置
type DispatcherConfig struct {
	LeasesURL     string `mapstructure:"leases_url"`     // Lease 服务 base URL
	SweepInterval string `mapstructure:"sweep_interval"` // 积压/过期巡检周期，如 "10s"
}

// WorkerConfig Worker 进程配置
type WorkerConfig struct {
	ID             string `mapstructure:"id"`               // 空则启动时生成 worker-<uuid>
	TaskServiceURL string `mapstructure:"task_service_url"` // Dispatcher base URL
	PollInterval   string `mapstructure:"poll_interval"`    // 无任务时的轮询间隔
	RequestTimeout string `mapstructure:"request_timeout"`  // HTTP 调用超时；必须小于 ttl/2
}

// GeneratorConfig 示例任务生成器配置
type GeneratorConfig struct {
	Rate  float64 `mapstructure:"rate"`  // 每秒生成任务数
	Burst int     `mapstructure:"burst"` // 突发上限
	Count int     `mapstructure:"count"` // 总生成数；<=0 表示持续生成
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// TTLDuration 解析租约 TTL；空或非法时返回默认 30s
func (c LeaseConfig) TTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.TTL); err == nil && d > 0 {
		return d
	}
	return DefaultLeaseTTL
}

// HeartbeatDuration 解析心跳间隔；空或非法时返回默认 15s
func (c LeaseConfig) HeartbeatDuration() time.Duration {
	if d, err := time.ParseDuration(c.HeartbeatInterval); err == nil && d > 0 {
		return d
	}
	return DefaultHeartbeatInterval
}

// Validate 校验租约比例约束 2*heartbeat <= ttl
func (c LeaseConfig) Validate() error {
	ttl := c.TTLDuration()
	hb := c.HeartbeatDuration()
	if 2*hb > ttl {
		return fmt.Errorf("lease 配置不合法: 2*heartbeat_interval(%v) 必须 <= ttl(%v)", hb, ttl)
	}
	return nil
}

// PollDuration 解析 Worker 轮询间隔；默认 2s
func (c WorkerConfig) PollDuration() time.Duration {
	if d, err := time.ParseDuration(c.PollInterval); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// TimeoutDuration 解析 Worker HTTP 超时；默认 10s（< 默认 ttl/2 = 15s）
func (c WorkerConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.RequestTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// SweepDuration 解析巡检周期；默认 10s
func (c DispatcherConfig) SweepDuration() time.Duration {
	if d, err := time.ParseDuration(c.SweepInterval); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// LoadConfig 加载配置文件；文件不存在时仅用默认值 + 环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("无法读取配置文件: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	applyEnvOverrides(&config)

	if err := config.Lease.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "")
	v.SetDefault("service.port", 8080)
	v.SetDefault("store.type", "postgres")
	v.SetDefault("lease.ttl", "30s")
	v.SetDefault("lease.heartbeat_interval", "15s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// applyEnvOverrides 应用约定的环境变量；环境变量优先于配置文件
func applyEnvOverrides(config *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.Store.DSN = dsn
		config.Store.Type = "postgres"
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			config.Service.Port = p
		}
	}
	if u := os.Getenv("SERVICE_LEASES_URL"); u != "" {
		config.Dispatcher.LeasesURL = u
	}
	if u := os.Getenv("TASK_SERVICE_URL"); u != "" {
		config.Worker.TaskServiceURL = u
	}
	if ttl := os.Getenv("LEASE_TTL"); ttl != "" {
		config.Lease.TTL = ttl
	}
	if hb := os.Getenv("HEARTBEAT_INTERVAL"); hb != "" {
		config.Lease.HeartbeatInterval = hb
	}
}

// LoadLeasesConfig 加载 Lease 服务配置
func LoadLeasesConfig() (*Config, error) {
	return LoadConfig("configs/leases.yaml")
}

// LoadTasksConfig 加载 Dispatcher 服务配置
func LoadTasksConfig() (*Config, error) {
	return LoadConfig("configs/tasks.yaml")
}

// LoadWorkerConfig 加载 Worker 配置
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
