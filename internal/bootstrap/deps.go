package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/airports"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/service/reservation"
	"github.com/Domenick1991/flightbooking/internal/worker"
)

// Deps holds the storage, engine and services shared by the API and the worker.
type Deps struct {
	Flights  repository.FlightRepository
	Bookings repository.BookingRepository
	Airports repository.AirportRepository

	Engine         *reservation.Engine
	AirportService *airports.AirportService
	FlightService  *flights.FlightService
	BookingService *booking.BookingService

	// Producer is nil when no Kafka brokers are configured.
	Producer *kafka.Producer
	Checks   map[string]Check

	closers []func() error
}

// NewDeps connects storage, the optional Redis cache and the optional Kafka
// producer, then wires the services on top.
func NewDeps(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Deps, error) {
	d := &Deps{Checks: make(map[string]Check)}

	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		store := repository.NewMemoryStore()
		d.Flights, d.Bookings, d.Airports = store.Flights(), store.Bookings(), store.Airports()
		logger.Printf("bootstrap: using in-memory storage")
	default:
		pool, err := repository.NewPool(ctx, cfg.Database.DSN(), repository.PoolOptions{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.closers = append(d.closers, func() error { pool.Close(); return nil })
		d.Checks["postgres"] = pool.Ping
		d.Flights = repository.NewFlightRepository(pool)
		d.Bookings = repository.NewBookingRepository(pool)
		d.Airports = repository.NewAirportRepository(pool)
	}

	engineOpts := []reservation.Option{
		reservation.WithMaxAttempts(cfg.Reservation.MaxAttempts),
		reservation.WithBackoff(cfg.Reservation.Backoff()),
		reservation.WithLogger(logger),
		reservation.WithSeatCounter(d.Bookings),
	}
	flightOpts := []flights.FlightServiceOption{flights.WithLogger(logger)}

	if cfg.Redis.Enabled() {
		redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.CacheTTL())
		d.closers = append(d.closers, redisCache.Close)
		d.Checks["redis"] = redisCache.Ping
		engineOpts = append(engineOpts, reservation.WithInvalidator(redisCache))
		flightOpts = append(flightOpts, flights.WithCache(redisCache))
	}

	var producer booking.Producer
	if cfg.Kafka.Enabled() {
		d.Producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
		d.closers = append(d.closers, d.Producer.Close)
		d.Checks["kafka"] = d.Producer.CheckConnection
		producer = d.Producer
	}

	d.Engine = reservation.NewEngine(d.Flights, engineOpts...)
	d.AirportService = airports.NewAirportService(d.Airports)
	d.FlightService = flights.NewFlightService(d.Flights, d.Bookings, d.AirportService, d.Engine, flightOpts...)
	d.BookingService = booking.NewBookingService(
		d.Bookings,
		d.Flights,
		d.Engine,
		producer,
		cfg.Kafka.BookingEventsTopic,
		cfg.Booking.HoldTTL(),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithLogger(logger),
	)
	return d, nil
}

// Close releases connections in reverse order of creation.
// Worker builds the expiry, completion and reconcile sweeps over these dependencies.
func (d *Deps) Worker(cfg *config.Config, logger *log.Logger) *worker.Worker {
	return worker.New(d.BookingService, d.Flights, d.Engine, worker.Intervals{
		Expire:    time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute,
		Complete:  time.Duration(cfg.Worker.CompletionSweepMinutes) * time.Minute,
		Reconcile: time.Duration(cfg.Worker.ReconcileSweepMinutes) * time.Minute,
	}, cfg.Worker.ReconcileRepair, logger)
}

func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
