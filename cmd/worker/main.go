package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/email"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/worker"
)

// errPrivateStorage rejects the memory driver: the worker's store would be its own,
// never the API's. The API runs the sweeps itself on that driver.
var errPrivateStorage = errors.New("storage.driver memory is local to one process; use postgres for a separate worker")

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "flightbooking-worker ", log.LstdFlags|log.Lmsgprefix)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("worker error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if cfg.Storage.Driver == config.StorageDriverMemory {
		return errPrivateStorage
	}

	deps, err := bootstrap.NewDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Printf("close dependencies: %v", err)
		}
	}()

	if cfg.Kafka.Enabled() && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logger)
		defer consumer.Close()

		handler := worker.NotificationHandler(email.NewSender(logger), logger)
		go func() {
			if err := consumer.Consume(ctx, handler); err != nil {
				logger.Printf("notification consumer stopped: %v", err)
			}
		}()
	}

	w := deps.Worker(cfg, logger)

	logger.Printf("worker started")
	w.Run(ctx)
	logger.Printf("worker stopped")
	return nil
}
