package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mapboot "taxirn/internal/mapview/bootstrap"
	"taxirn/internal/shared/config"
	"taxirn/internal/shared/logger"
)

func main() {
	mapLog, err := logger.NewLoggerWithOptions("map-service", os.Getenv("LOG_LEVEL"), "./map_service_logs/")
	if err != nil {
		log.Fatalln("failed to create logger:", err)
	}
	defer mapLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mapboot.Run(ctx, config.Load(), mapLog)
}
