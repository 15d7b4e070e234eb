package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	adminboot "taxirn/internal/admin/bootstrap"
	"taxirn/internal/shared/config"
	"taxirn/internal/shared/logger"
)

func main() {
	adminLog, err := logger.NewLoggerWithOptions("admin-service", "info", "./admin_service_logs/")
	if err != nil {
		log.Fatalln("failed to create logger:", err)
	}
	defer adminLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adminboot.Run(ctx, config.Load(), adminLog)
}
