package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abouchard11/sports-betting-analytics/internal/app"
	"github.com/abouchard11/sports-betting-analytics/internal/app/leaseapp"
	"github.com/abouchard11/sports-betting-analytics/pkg/config"
)

func main() {
	cfg, err := config.LoadLeasesConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	ctx := context.Background()
	bootstrap, err := app.NewBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	application, err := leaseapp.NewApp(ctx, bootstrap)
	if err != nil {
		log.Fatalf("创建租约服务失败: %v", err)
	}

	go func() {
		if err := application.Run(bootstrap.Addr()); err != nil && err != http.ErrServerClosed {
			log.Printf("租约服务异常退出: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Printf("关闭失败: %v", err)
	}
	log.Println("租约服务已关闭")
}
