package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taxirn/internal/mapview/adapters/in/in_amqp"
	"taxirn/internal/mapview/adapters/in/in_ws"
	"taxirn/internal/mapview/adapters/in/transport"
	"taxirn/internal/mapview/adapters/out/geoclue"
	"taxirn/internal/mapview/adapters/out/kv"
	"taxirn/internal/mapview/adapters/out/nominatim"
	"taxirn/internal/mapview/adapters/out/osrm"
	"taxirn/internal/mapview/adapters/out/out_amqp"
	"taxirn/internal/mapview/adapters/out/out_ws"
	"taxirn/internal/mapview/adapters/out/repo"
	"taxirn/internal/mapview/application/ports/out"
	"taxirn/internal/mapview/application/usecase"
	"taxirn/internal/mapview/domain"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/config"
	db_conn "taxirn/internal/shared/db"
	"taxirn/internal/shared/logger"
	"taxirn/internal/shared/mq"
	"taxirn/internal/shared/storage"
	"taxirn/internal/shared/user"
	"taxirn/internal/shared/ws"
)

// geocodeCacheOwner — владелец записей кэша геокодера в хранилище снапшотов
const geocodeCacheOwner = "_geocode"

// snapshotStores — хранилище снапшотов с закрытием
type snapshotStores interface {
	out.SnapshotStoreFactory
	Close() error
}

// Run запускает Map Service
func Run(ctx context.Context, cfg config.Config, log *logger.Logger) {
	log.Info(logger.Entry{Action: "map_service_starting", Message: "initializing map service"})

	// 1. PostgreSQL + миграции
	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer db_conn.Close(dbPool, log)

	if err := db_conn.Migrate(ctx, dbPool, log); err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_migration_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	// 2. Локальное хранилище снапшотов карты
	stores, err := openSnapshotStores(cfg.Map)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "snapshot_store_open_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn(logger.Entry{Action: "snapshot_store_close_failed", Message: err.Error()})
		}
	}()

	// 3. WebSocket hub: канвасы, уведомления, канал команд
	jwtService := auth.NewJWTService(cfg.JWT)
	hub := ws.NewHub(jwtService.ExtractUserID, cfg.WebSocket.AllowedOrigin, log)
	go hub.Run(ctx)

	canvases := out_ws.NewCanvasFactory(hub, log)
	notifier := out_ws.NewWsNotifier(hub, log)

	// 4. RabbitMQ (опционально)
	var publisher out.EventPublisher
	var mqConn *mq.RabbitMQ
	if cfg.RabbitMQ.Enabled {
		mqConn, err = mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal(logger.Entry{
				Action:  "rabbitmq_connection_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn, log); err != nil {
			log.Error(logger.Entry{
				Action:  "rabbitmq_topology_setup_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
		publisher = out_amqp.NewMapEventPublisher(mqConn, log)
	} else {
		log.Warn(logger.Entry{Action: "rabbitmq_disabled", Message: "map events will not be published"})
	}

	// 5. Сессии карт
	registry := usecase.NewSessionRegistry(usecase.SessionDeps{
		Canvases:   canvases,
		Stores:     stores,
		Locations:  repo.NewLocationPgRepository(dbPool),
		Routes:     repo.NewRoutePgRepository(dbPool),
		Routing:    osrm.NewClient(cfg.Map.OSRMBaseURL, cfg.Map.RoutingTimeout, log),
		Notifier:   notifier,
		Publisher:  publisher,
		Geolocator: geoclue.NewGeolocator(cfg.Map.GeoClueDesktop, log),
		Places:     nominatim.NewSearcher(cfg.Map.NominatimServer, stores.StoreFor(geocodeCacheOwner), log),
		Defaults:   mapDefaults(cfg.Map, log),
	}, log)

	commands := in_ws.NewCommandHandler(registry, canvases, hub, log)
	commands.Register(hub)

	if mqConn != nil {
		consumer := in_amqp.NewCollectionSyncConsumer(mqConn, registry, hub, log)
		if err := consumer.Start(ctx); err != nil {
			log.Error(logger.Entry{
				Action:  "collection_consumer_start_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}

	// 6. HTTP
	users := user.NewPgRepository(dbPool, log)
	handler := transport.NewHTTPHandler(registry, storage.NewPublicURLs(cfg.Storage.PublicURL), log)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, transport.AuthMiddleware(jwtService, users, log), hub.ServeWS)

	addr := fmt.Sprintf(":%d", cfg.Services.MapServicePort)
	server := &http.Server{
		Addr:              addr,
		Handler:           transport.LoggingMiddleware(log)(mux),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

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

	<-ctx.Done()
	log.Info(logger.Entry{Action: "map_service_stopping", Message: "shutting down map service"})

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

	log.Info(logger.Entry{Action: "map_service_stopped", Message: "map service stopped"})
}

func openSnapshotStores(cfg config.MapConfig) (snapshotStores, error) {
	switch cfg.SnapshotDriver {
	case "", "sqlite":
		return kv.OpenSQLite(cfg.SnapshotPath)
	case "file":
		return kv.NewFileStore(cfg.SnapshotPath)
	}
	return nil, fmt.Errorf("unknown map store driver %q", cfg.SnapshotDriver)
}

// mapDefaults — viewport и слой тайлов из конфигурации; некорректные значения
// заменяются значениями по умолчанию
func mapDefaults(cfg config.MapConfig, log *logger.Logger) usecase.MapDefaults {
	defaults := usecase.DefaultMapDefaults()

	if center, err := domain.NewPoint(cfg.DefaultLat, cfg.DefaultLng); err == nil {
		defaults.View.Center = center
	} else {
		log.Warn(logger.Entry{Action: "map_default_center_invalid", Message: err.Error()})
	}
	if cfg.DefaultZoom > 0 {
		defaults.View.Zoom = cfg.DefaultZoom
	}
	if cfg.DefaultTiles != "" {
		tiles, err := domain.TileLayerByName(cfg.DefaultTiles)
		if err != nil {
			log.Warn(logger.Entry{Action: "map_default_tiles_invalid", Message: err.Error()})
		} else {
			defaults.Tiles = tiles
		}
	}
	return defaults
}
