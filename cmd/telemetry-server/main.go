package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/config"
	"github.com/tahahayali/type-int--disasterRecovery/internal/consumer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/database"
	"github.com/tahahayali/type-int--disasterRecovery/internal/gateway"
	"github.com/tahahayali/type-int--disasterRecovery/internal/httpapi"
	"github.com/tahahayali/type-int--disasterRecovery/internal/logger"
	"github.com/tahahayali/type-int--disasterRecovery/internal/mqtt"
	"github.com/tahahayali/type-int--disasterRecovery/internal/redis"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
	"github.com/tahahayali/type-int--disasterRecovery/internal/service"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "telemetry-server")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("Starting telemetry server",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("db_enabled", cfg.DBEnabled),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
		zap.Bool("mqtt_enabled", cfg.MQTT.Enabled),
		zap.Duration("flush_interval", cfg.Flush.Interval),
	)

	// Persistent store: PostgreSQL when reachable, in-memory fallback
	// otherwise so field deployments without a database still run.
	var store repository.RecordStore
	dbConnected := false
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			zlog.Warn("Database unreachable, using in-memory store", zap.Error(err))
		} else {
			defer database.Close(db)
			store = repository.NewPostgresStore(db, zlog)
			dbConnected = true
		}
	}
	if store == nil {
		store = repository.NewMemoryStore()
		zlog.Info("Using in-memory record store")
	}

	buf := buffer.NewLocationBuffer()
	pipeline := service.NewIngestionPipeline(store, buf, zlog)
	merger := service.NewLocationMerger(store, buf, zlog)
	scheduler := service.NewFlushScheduler(store, buf, cfg.Flush.Interval, zlog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Start(ctx)

	// Asynchronous intake: MQTT gateway -> Redis stream -> pipeline.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&cfg.Redis)
		if err := redis.Ping(ctx, redisClient); err != nil {
			zlog.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close(redisClient)

		streamConsumer := consumer.NewStreamConsumer(&cfg.Redis, redisClient, pipeline, zlog)
		go func() {
			if err := streamConsumer.Start(ctx); err != nil {
				zlog.Fatal("Stream consumer failed", zap.Error(err))
			}
		}()
	}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		if redisClient == nil {
			zlog.Fatal("MQTT intake requires REDIS_ENABLED=true")
		}
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, zlog)
		if err != nil {
			zlog.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer mqttClient.Disconnect()

		gw := gateway.NewGateway(mqttClient, redisClient, cfg, zlog)
		go func() {
			if err := gw.Start(ctx); err != nil {
				zlog.Fatal("MQTT gateway failed", zap.Error(err))
			}
		}()
	}

	api := httpapi.NewAPI(pipeline, merger, store, buf, dbConnected, zlog)
	server := service.NewServer(cfg.HTTP.Addr, api.Routes(), zlog)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	zlog.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		zlog.Error("Error during HTTP shutdown", zap.Error(err))
	}

	zlog.Info("Telemetry server stopped")
}
