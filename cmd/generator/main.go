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

// 示例任务生成器：按速率向任务表写入赔率快照。配置了 dispatcher.leases_url 时
// 单实例由租约保证——资源 "demo-generator" 上的 Handle 自动续期，抢不到就退出；
// 未配置时不做单实例守护。
package main

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/abouchard11/sports-betting-analytics/internal/app"
	"github.com/abouchard11/sports-betting-analytics/internal/leaseclient"
	"github.com/abouchard11/sports-betting-analytics/internal/task"
	"github.com/abouchard11/sports-betting-analytics/pkg/config"
)

const generatorResource = "demo-generator"

var sports = []string{"soccer", "tennis", "basketball", "hockey"}
var markets = []string{"1x2", "over_under", "handicap"}

func randomEvent() json.RawMessage {
	n := 2 + rand.Intn(2)
	odds := make([]float64, n)
	for i := range odds {
		odds[i] = 1.5 + rand.Float64()*4
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"sport":  sports[rand.Intn(len(sports))],
		"market": markets[rand.Intn(len(markets))],
		"odds":   odds,
	})
	return payload
}

func main() {
	cfg, err := config.LoadConfig("configs/generator.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bootstrap, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer bootstrap.Close()
	if bootstrap.Pool == nil {
		log.Fatal("生成器需要 postgres 任务存储（store.type=postgres）")
	}
	if err := task.EnsureTasksSchema(ctx, bootstrap.Pool); err != nil {
		log.Fatalf("建表失败: %v", err)
	}
	store := task.NewPostgresStore(bootstrap.Pool)

	// 单实例守护：配置了租约服务时独占 demo-generator 资源
	var handle *leaseclient.Handle
	if cfg.Dispatcher.LeasesURL != "" {
		svc := leaseclient.NewService(cfg.Dispatcher.LeasesURL, cfg.Lease.TTLDuration()/3)
		handle = leaseclient.NewHandle(svc, generatorResource, "generator-"+hostname())
		if err := handle.Acquire(ctx); err != nil {
			log.Fatalf("另一个生成器实例已在运行: %v", err)
		}
		if err := handle.StartAutoRenew(cfg.Lease.HeartbeatDuration()); err != nil {
			log.Fatalf("启动租约续期失败: %v", err)
		}
		defer func() {
			handle.StopAutoRenew()
			_ = handle.Release(context.Background())
		}()
	}

	emitRate := cfg.Generator.Rate
	if emitRate <= 0 {
		emitRate = 1
	}
	burst := cfg.Generator.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(emitRate), burst)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	emitted := 0
	for cfg.Generator.Count <= 0 || emitted < cfg.Generator.Count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if handle != nil && handle.Lost() {
			log.Println("生成器租约已失去，退出")
			break
		}
		created, err := store.Create(ctx, randomEvent())
		if err != nil {
			log.Printf("写入任务失败: %v", err)
			continue
		}
		emitted++
		bootstrap.Logger.Info("task emitted", "task_id", created.ID, "emitted", emitted)
	}
	log.Printf("生成器退出，共写入 %d 个任务", emitted)
}

func hostname() string {
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}
