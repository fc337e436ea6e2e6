package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/catmaikl777/kitten-draw-backend/internal/bootstrap"
)

func main() {
	// 初始化应用 (加载配置, 初始化依赖)
	app, err := bootstrap.NewApp()
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	// 启动应用 (Hub, Worker, HTTP 服务器)
	app.Start()

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Log.Info("Received shutdown signal")

	// 执行优雅关闭
	app.Shutdown()
}
