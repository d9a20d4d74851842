// Maestro Engine — демон движка workflow.
//
// Engine:
//   - Держит реестр определений workflow и выполняет executions
//   - Публикует human tasks в RabbitMQ (Task Inbox)
//   - Принимает завершения задач из очереди tasks.completed
//   - Журналирует executions в Postgres
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Maestro/internal/inbox"
	"github.com/shaiso/Maestro/internal/orchestrator"
	"github.com/shaiso/Maestro/internal/repo"
	"github.com/shaiso/Maestro/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting maestro-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := orchestrator.Config{Logger: logger}

	// DB pool (опционально: без БД движок работает в памяти)
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Warn("database not available, running in-memory only", "error", err)
	} else {
		defer pool.Close()
		logger.Info("database connected")
		cfg.WorkflowStore = repo.NewWorkflowRepo(pool)
		cfg.ExecutionStore = repo.NewExecutionRepo(pool)
	}

	// RabbitMQ (опционально: без брокера задачи остаются в MemoryInbox)
	var mqConn *inbox.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = inbox.DefaultURL()
	}

	mqConn, err = inbox.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, using in-memory inbox", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := inbox.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		} else {
			logger.Debug("topology ready", "topology", inbox.TopologyInfo())
		}
		// После reconnect брокер может оказаться чистым
		mqConn.OnReconnect(inbox.DeclareTopology)

		cfg.Inbox = inbox.NewAMQPInbox(mqConn, logger)
	}

	// Создаём движок
	engine := orchestrator.New(cfg)

	// Поднимаем сохранённые определения
	if loaded, err := engine.LoadRegistered(ctx); err != nil {
		logger.Warn("failed to load registered workflows", "error", err)
	} else if loaded > 0 {
		logger.Info("workflows loaded", "count", loaded)
	}

	// Consumer завершений задач
	if mqConn != nil {
		consumer := inbox.NewCompletionConsumer(mqConn, logger, engine)
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("completion consumer stopped", "error", err)
				cancel()
			}
		}()
		defer consumer.Stop()
	}

	// Escalator просроченных задач
	escalator, err := inbox.NewEscalator(inbox.EscalatorConfig{
		Lister:   engine,
		CronExpr: os.Getenv("ESCALATOR_CRON"),
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to create escalator", "error", err)
		os.Exit(1)
	}
	go escalator.Run(ctx)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8084"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("maestro-engine stopped")
}
