package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
)

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

	logger := log.New(os.Stderr, "flightbooking ", log.LstdFlags|log.Lmsgprefix)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	deps, err := bootstrap.NewDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Printf("close dependencies: %v", err)
		}
	}()

	if cfg.Storage.Driver == config.StorageDriverMemory {
		logger.Printf("memory storage: running booking sweeps in-process")
		go deps.Worker(cfg, logger).Run(ctx)
	}

	router := api.NewRouter(api.Services{
		Airports: deps.AirportService,
		Flights:  deps.FlightService,
		Bookings: deps.BookingService,
	}, cfg.HTTP.CORSOrigins)

	return bootstrap.Run(ctx, cfg, router, deps.Checks, logger)
}
