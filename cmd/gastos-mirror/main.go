package main

import (
	"context"
	"errors"
	"os"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/backend"
	"gastos/internal/cli"
	"gastos/internal/config"
	"gastos/internal/log"
	"gastos/internal/worker"

	"golang.org/x/sync/errgroup"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting gastos-mirror")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateMirror)
	factory := backend.NewFactory(logger)

	primaryCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid primary backend configuration", "error", err)
		os.Exit(1)
	}
	mirrorCfg, err := backend.MirrorFromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid mirror backend configuration", "error", err)
		os.Exit(1)
	}

	primary, err := factory.CreateBackend(context.Background(), primaryCfg)
	if err != nil {
		logger.Error("Failed to initialize primary ledger", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer primary.Close()

	mirror, err := factory.CreateBackend(context.Background(), mirrorCfg)
	if err != nil {
		logger.Error("Failed to initialize mirror ledger", "error", err, "backend", cfg.MirrorBackend)
		os.Exit(1)
	}
	defer mirror.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(primary.Backend, mirror.Backend, logger)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Performing startup sync", log.NewFields().
			WithOperation(log.OpStartup).
			WithComponent(log.ComponentWorker).
			ToSlice()...,
		)
		// A failed catch-up is logged; live messages still flow.
		if err := mirrorWorker.StartupSync(gctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Startup sync incomplete", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		err := amqpClient.ConsumeMonthChanged(gctx, mirrorWorker.HandleMonthChanged)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Mirror worker stopped", "error", err)
		os.Exit(1)
	}
	<-done
	logger.Info("gastos-mirror stopped")
}
