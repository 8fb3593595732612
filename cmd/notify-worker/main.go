package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/cardio-intake/cmd/mainconfig"
	"github.com/wolfman30/cardio-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/cardio-intake/internal/config"
	"github.com/wolfman30/cardio-intake/internal/notify"
	"github.com/wolfman30/cardio-intake/pkg/logging"
)

const pollers = 2

func main() {
	mainconfig.LoadEnv()
	cfg := appconfig.Load()
	logger := logging.NewWithFile(cfg.LogLevel, logging.FileOptions{Path: cfg.LogFile})

	if cfg.NotifyQueueURL == "" {
		logger.Error("notify worker requires NOTIFY_QUEUE_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	deliver := bootstrap.BuildDeliveryNotifier(cfg, &awsCfg, logger)
	if deliver.Len() == 0 {
		logger.Error("notify worker has no delivery channels; configure Telegram or email")
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(sqs.NewFromConfig(awsCfg), cfg.NotifyQueueURL, deliver, logger)

	logger.Info("notify worker started", "queue_url", cfg.NotifyQueueURL, "pollers", pollers, "channels", deliver.Len())
	if err := runPollers(ctx, dispatcher, pollers); err != nil {
		logger.Error("notify worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("notify worker stopped")
}

// runner is satisfied by *notify.Dispatcher.
type runner interface {
	Run(ctx context.Context) error
}

// runPollers runs n copies of r until ctx is cancelled, waiting at most 30s
// for them to drain afterwards.
func runPollers(ctx context.Context, r runner, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error { return r.Run(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	select {
	case err := <-done:
		return err
	case <-time.After(30 * time.Second):
		return errors.New("shutdown timed out")
	}
}
