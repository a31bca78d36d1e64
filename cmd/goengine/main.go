// Command goengine forwards the event streams of a queue in aggregate version order.
//
// The run command consumes the amqp.queue, publishes every stream on the amqp.publish_queue once all previous
// versions of the aggregate were published and records the published version in the checkpoint table.
// The schema command creates the checkpoint table and the correction trigger.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hellofresh/goengine-core"
	"github.com/hellofresh/goengine-core/checkpoint/postgres"
	"github.com/hellofresh/goengine-core/config"
	"github.com/hellofresh/goengine-core/eventing"
	"github.com/hellofresh/goengine-core/extension/amqp"
	goenginePq "github.com/hellofresh/goengine-core/extension/pq"
	goenginePrometheus "github.com/hellofresh/goengine-core/extension/prometheus"
	goengineZap "github.com/hellofresh/goengine-core/extension/zap"
	"github.com/hellofresh/goengine-core/retry"
)

func main() {
	configPath := flag.String("config", "", "path of the config file, defaults to goengine.yaml in the working directory")
	flag.Parse()

	logger, err := zap.NewProduction()
	failOnErr(err)
	defer func() {
		_ = logger.Sync()
	}()
	goengineLogger := goengineZap.Wrap(logger)

	cfg, err := config.Load(*configPath, goengineLogger)
	failOnErr(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command := flag.Arg(0); command {
	case "schema":
		failOnErr(createSchema(ctx, cfg, logger))
	case "run", "":
		failOnErr(run(ctx, cfg, logger, goengineLogger))
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, expected schema or run\n", command)
		os.Exit(2)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, goengineLogger goengine.Logger) error {
	db, dbCloser, err := newPostgresDB(cfg, logger)
	if err != nil {
		return err
	}
	defer dbCloser()

	metrics := goenginePrometheus.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.RegisterMetrics(registry); err != nil {
		return err
	}

	store, err := postgres.NewStore(db, cfg.Postgres.CheckpointTable, goengineLogger)
	if err != nil {
		return err
	}

	retrier, err := retry.NewRetrier(cfg.RetryBackoff(), goengineLogger, metrics)
	if err != nil {
		return err
	}

	publisher, err := amqp.NewPublisher(cfg.AMQP.DSN, cfg.AMQP.PublishQueue, goengineLogger, nil, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.With(zap.Error(err)).Warn("failed to close publisher")
		}
	}()

	processor, err := eventing.NewProcessor(cfg.Event.ProcessorName, publisher, store, retrier, cfg.EventOptions(), goengineLogger, metrics)
	if err != nil {
		return err
	}
	stopProcessor := processor.Start(ctx)
	defer stopProcessor()

	consume, err := amqp.DirectQueueConsume(cfg.AMQP.DSN, cfg.AMQP.Queue, cfg.AMQP.Prefetch)
	if err != nil {
		return err
	}
	listener, err := amqp.NewListener(consume, cfg.Retry.MinDelay, cfg.Retry.MaxDelay, goengineLogger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(listener.Listen(gctx, processor))
	})

	if cfg.Postgres.CorrectionChannel != "" {
		corrections, err := goenginePq.NewListener(
			cfg.Postgres.DSN,
			cfg.Postgres.CorrectionChannel,
			cfg.Retry.MinDelay,
			cfg.Retry.MaxDelay,
			goengineLogger,
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return corrections.Listen(gctx, processor)
		})
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, registry, logger)
		})
	}

	logger.With(zap.String("processor", processor.Name()), zap.String("queue", cfg.AMQP.Queue)).Info("started forwarding event streams")

	return g.Wait()
}

func createSchema(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, dbCloser, err := newPostgresDB(cfg, logger)
	if err != nil {
		return err
	}
	defer dbCloser()

	for _, query := range postgres.CreateSchema(cfg.Postgres.CheckpointTable, cfg.Postgres.CorrectionChannel) {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}

	logger.With(zap.String("table", cfg.Postgres.CheckpointTable)).Info("created checkpoint schema")
	return nil
}

// newPostgresDB opens the checkpoint database and waits until it is reachable
func newPostgresDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, func(), error) {
	postgresDB, err := sql.Open("postgres", cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}

	postgresDBCloser := func() {
		if err := postgresDB.Close(); err != nil {
			logger.With(zap.Error(err)).Warn("postgresDB.Close return an error")
		}
	}

	// Ensure we are connected
	for i := 0; ; i++ {
		err := postgresDB.Ping()
		if err == nil {
			break
		}

		if i > 5 {
			postgresDBCloser()
			return nil, nil, err
		}
		logger.With(zap.Error(err)).Warn("failed to ping db waiting to try again")
		time.Sleep(time.Second)
	}

	return postgresDB, postgresDBCloser, nil
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *zap.Logger) error {
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.With(zap.Error(err)).Error("failed to shutdown metrics server")
		}
	}()

	logger.With(zap.String("addr", addr)).Info("serving metrics")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func failOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
