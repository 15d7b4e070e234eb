package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"taxirn/internal/shared/config"
	"taxirn/internal/shared/logger"

	adminboot "taxirn/internal/admin/bootstrap"
	mapboot "taxirn/internal/mapview/bootstrap"
)

func main() {
	svc := flag.String("service", "map", "map|admin|all")
	flag.Parse()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() { <-quit; cancel() }()

	switch *svc {
	case "map":
		mapLog := newLogger("map-service")
		defer mapLog.Close()
		mapboot.Run(ctx, cfg, mapLog)

	case "admin":
		adminLog := newLogger("admin-service")
		defer adminLog.Close()
		adminboot.Run(ctx, cfg, adminLog)

	case "all":
		mapLog := newLogger("map-service")
		adminLog := newLogger("admin-service")
		defer mapLog.Close()
		defer adminLog.Close()

		// Run возвращается после graceful shutdown
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); mapboot.Run(ctx, cfg, mapLog) }()
		go func() { defer wg.Done(); adminboot.Run(ctx, cfg, adminLog) }()
		wg.Wait()

	default:
		l := logger.NewLogger("bootstrap")
		l.Fatal(logger.Entry{Action: "invalid_service", Message: *svc})
	}
}

// newLogger — уровень из LOG_LEVEL, дублирование в файлы при LOG_DIR
func newLogger(service string) *logger.Logger {
	dir := os.Getenv("LOG_DIR")
	if dir != "" {
		dir = filepath.Join(dir, service)
	}
	l, err := logger.NewLoggerWithOptions(service, os.Getenv("LOG_LEVEL"), dir)
	if err != nil {
		log.Fatalln("failed to create logger:", err)
	}
	return l
}
