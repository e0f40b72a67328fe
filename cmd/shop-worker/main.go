package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/di"
	"github.com/byceps/byceps-sub001/internal/platform/config"
	"github.com/byceps/byceps-sub001/internal/platform/jobs"
	"github.com/byceps/byceps-sub001/internal/platform/observability"
)

// consumer drains one job backend until its context is canceled.
type consumer interface {
	Run(ctx context.Context) error
}

func main() {
	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}
	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("shop-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	container, err := di.NewContainer(ctx, cfg, di.Options{Logger: baseLogger})
	if err != nil {
		logger.Fatal("failed to initialise container", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}()

	c, err := newConsumer(cfg, container, logger)
	if err != nil {
		logger.Fatal("failed to initialise job consumer", zap.Error(err))
	}

	logger.Info("shop worker consuming jobs", zap.String("driver", cfg.Jobs.Driver))
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("job consumer stopped", zap.Error(err))
		return
	}
	logger.Info("shop worker stopped")
}

func newConsumer(cfg config.Config, container *di.Container, logger *zap.Logger) (consumer, error) {
	infra := container.Infrastructure
	switch cfg.Jobs.Driver {
	case config.JobsDriverPubSub:
		sub := infra.PubSub.Subscription(cfg.Jobs.PubSubSubscription)
		return jobs.NewPubSubConsumer(sub, infra.Dispatcher, logger.Named("pubsub"))
	case config.JobsDriverRedis:
		return jobs.NewRedisConsumer(infra.Redis, cfg.Jobs.RedisStream, cfg.Jobs.RedisGroup, consumerName(), infra.Dispatcher, logger.Named("redis"))
	default:
		return nil, fmt.Errorf("jobs driver %q runs jobs inline; no worker is needed", cfg.Jobs.Driver)
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || strings.TrimSpace(host) == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
