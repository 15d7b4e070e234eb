package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taxirn/internal/admin/adapters/in/transport"
	"taxirn/internal/admin/adapters/out/repo"
	"taxirn/internal/admin/application/usecase"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/config"
	db_conn "taxirn/internal/shared/db"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/storage"
)

// Run запускает Admin Service
func Run(ctx context.Context, cfg config.Config, log *logger.Logger) {
	log.Info(logger.Entry{Action: "admin_service_starting", Message: "initializing admin service"})

	// 1. Инициализация PostgreSQL
	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer db_conn.Close(dbPool, log)

	// Миграции идемпотентны; add_new_user нужен до первого запроса
	if err := db_conn.Migrate(ctx, dbPool, log); err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_migration_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	// 2. Инициализация JWT сервиса
	jwtService := auth.NewJWTService(cfg.JWT)

	// 3. Создаем репозитории (Adapter OUT)
	userRepo := repo.NewUserPgRepository(dbPool, log)

	// 4. Создаем use cases (Application)
	urls := storage.NewPublicURLs(cfg.Storage.PublicURL)
	createUserUC := usecase.NewCreateUserService(userRepo, urls, log)
	listUsersUC := usecase.NewListUsersService(userRepo, urls, log)

	// 5. Создаем HTTP handler (Adapter IN)
	httpHandler := transport.NewHTTPHandler(createUserUC, listUsersUC, log)

	// 6. Настраиваем HTTP сервер
	mux := http.NewServeMux()

	// Middleware для ADMIN аутентификации
	adminAuthMiddleware := transport.AdminAuthMiddleware(jwtService, log)

	// Регистрируем маршруты
	httpHandler.RegisterRoutes(mux, adminAuthMiddleware)

	// HTTP сервер
	addr := fmt.Sprintf(":%d", cfg.Services.AdminServicePort)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Запускаем HTTP сервер в горутине
	go func() {
		log.Info(logger.Entry{
			Action:  "http_server_starting",
			Message: fmt.Sprintf("listening on %s", addr),
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(logger.Entry{
				Action:  "http_server_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}()

	// Ожидаем завершения контекста
	<-ctx.Done()
	log.Info(logger.Entry{Action: "admin_service_stopping", Message: "shutting down admin service"})

	// Завершаем работу HTTP сервера
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(logger.Entry{
			Action:  "http_server_shutdown_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	} else {
		log.Info(logger.Entry{Action: "http_server_stopped", Message: "http server stopped gracefully"})
	}

	log.Info(logger.Entry{Action: "admin_service_stopped", Message: "admin service stopped"})
}
