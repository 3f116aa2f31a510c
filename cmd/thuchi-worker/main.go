package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"thuchi/internal/amqp"
	"thuchi/internal/cli"
	applog "thuchi/internal/log"
	syncagent "thuchi/internal/sync"
	"thuchi/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting thuchi-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the mirror worker")
		os.Exit(1)
	}
	if cfg.MirrorEndpoint == "" {
		logger.Error("MIRROR_ENDPOINT is required for the mirror worker")
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	agent := syncagent.NewAgent(&http.Client{Timeout: cfg.SyncHTTPTimeout})
	mirror := worker.NewMirror(agent, cfg.MirrorEndpoint)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRecordEvents(ctx, func(msg *amqp.RecordEventMessage) error {
			return mirror.HandleRecordEvent(ctx, msg)
		})
	})

	logger.Info("Mirror worker consuming record events",
		applog.FieldQueueName, cfg.AMQPQueue,
		applog.FieldEndpoint, cfg.MirrorEndpoint)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
