package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lodge/config"
	"lodge/di"
	"lodge/shared/logger"
)

func main() {
	cfg := config.Get()

	logger.InitLogger()

	logger.SetLogLevel(cfg)

	app := di.InitializeService()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go app.Scheduler.Run(ctx)

	app.HTTP.Serve()
}
