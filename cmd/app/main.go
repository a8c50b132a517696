package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asquebay/order-sync-service/internal/config"
	"github.com/asquebay/order-sync-service/internal/gateway"
	"github.com/asquebay/order-sync-service/internal/lib/logger"
	"github.com/asquebay/order-sync-service/internal/metrics"
	"github.com/asquebay/order-sync-service/internal/repository/postgres"
	"github.com/asquebay/order-sync-service/internal/repository/runs"
	"github.com/asquebay/order-sync-service/internal/repository/snapshot"
	"github.com/asquebay/order-sync-service/internal/scheduler"
	"github.com/asquebay/order-sync-service/internal/service"
	httptransport "github.com/asquebay/order-sync-service/internal/transport/http"
	"github.com/asquebay/order-sync-service/internal/transport/kafka"
)

func main() {
	// 1. Инициализация конфигурации
	cfg := config.MustLoad(config.ResolvePath())

	// 2. Инициализация логгера
	log := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	log.Info("starting order-sync-service",
		slog.String("log_level", cfg.Logger.Level),
		slog.String("remote", cfg.Remote.BaseURL),
		slog.String("snapshot", cfg.Snapshot.Path),
	)

	initCtx := context.Background()

	// 3. Шлюз к внешнему API, хранилище снапшота, реестр запусков
	client := gateway.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey, nil)
	store := snapshot.NewFileStore(cfg.Snapshot.Path)
	registry := runs.NewRegistry()

	// 4. Необязательные получатели снапшота
	var sinks []service.SnapshotSink

	if cfg.Postgres.Enabled {
		dbpool, err := postgres.New(initCtx, cfg.Postgres)
		if err != nil {
			log.Error("failed to connect to postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer dbpool.Close()

		mirror := postgres.NewOrderMirror(dbpool)
		if err := mirror.Migrate(initCtx); err != nil {
			log.Error("failed to migrate postgres mirror", slog.String("error", err.Error()))
			os.Exit(1)
		}
		sinks = append(sinks, mirror)
		log.Info("postgres mirror enabled")
	}

	var publisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		publisher = kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		sinks = append(sinks, publisher)
		log.Info("kafka publisher enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	// 5. Инициализация сервисного слоя
	orderSvc := service.NewOrderService(client, store, registry, log,
		service.WithSinks(sinks...),
		service.WithMetrics(metrics.NewSyncMetrics()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Запросы на синхронизацию из Kafka
	var consumer *kafka.Consumer
	if cfg.Kafka.RequestTopic != "" {
		consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.RequestTopic, cfg.Kafka.GroupID, orderSvc, log)
		consumer.Start(ctx)
	}

	// 7. Ежедневная синхронизация: сразу и каждую полночь
	var trigger *scheduler.DailyTrigger
	if cfg.Scheduler.Enabled {
		trigger = scheduler.NewDailyTrigger(orderSvc, log)
		if err := trigger.Start(ctx); err != nil {
			log.Error("failed to start daily trigger", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 8. Инициализация и запуск HTTP-сервера
	handler := httptransport.NewHandler(orderSvc, cfg.Auth, log)
	httpServer := httptransport.NewServer(cfg.HTTPServer, handler)
	log.Info("starting http server", slog.String("port", cfg.HTTPServer.Port))

	go func() {
		if err := httpServer.Run(); err != nil {
			log.Error("http server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// 9. Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down application")
	cancel() // сигнал для консьюмера и триггера на завершение

	// создаем контекст с таймаутом для шатдауна
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	// начатая синхронизация дописывает снапшот до конца
	if trigger != nil {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Error("daily trigger stop failed", slog.String("error", err.Error()))
		}
	}

	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error("kafka consumer stop failed", slog.String("error", err.Error()))
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Error("error closing kafka publisher", slog.String("error", err.Error()))
		}
	}

	log.Info("application stopped")
}
