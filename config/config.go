package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Booking     BookingConfig     `yaml:"booking"`
	Reservation ReservationConfig `yaml:"reservation"`
	Worker      WorkerConfig      `yaml:"worker"`
	Storage     StorageConfig     `yaml:"storage"`
}

type HTTPConfig struct {
	Address     string   `yaml:"address"`
	SwaggerDir  string   `yaml:"swagger_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled is false when no address is configured; the flight listing is then read straight from storage.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type BookingConfig struct {
	HoldTTLMinutes  int `yaml:"hold_ttl_minutes"`
	FlightsCacheTTL int `yaml:"flights_cache_ttl_seconds"`
}

func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

func (b BookingConfig) CacheTTL() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

type ReservationConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMS   int `yaml:"backoff_ms"`
}

func (r ReservationConfig) Backoff() time.Duration {
	return time.Duration(r.BackoffMS) * time.Millisecond
}

type WorkerConfig struct {
	ExpirationSweepMinutes int  `yaml:"expiration_sweep_minutes"`
	CompletionSweepMinutes int  `yaml:"completion_sweep_minutes"`
	ReconcileSweepMinutes  int  `yaml:"reconcile_sweep_minutes"`
	ReconcileRepair        bool `yaml:"reconcile_repair"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
}

// LoadConfig reads the YAML file at path, applies FLIGHTBOOKING_* environment
// overrides (a .env file in the working directory is loaded first if present)
// and fills defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env file: %v", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without reading the environment or filling defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.BookingEventsTopic == "" {
		c.Kafka.BookingEventsTopic = "booking-events"
	}
	if c.Kafka.NotificationsTopic == "" {
		c.Kafka.NotificationsTopic = "booking-notifications"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "flightbooking-worker"
	}
	if c.Booking.HoldTTLMinutes == 0 {
		c.Booking.HoldTTLMinutes = 15
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Reservation.MaxAttempts == 0 {
		c.Reservation.MaxAttempts = 8
	}
	if c.Reservation.BackoffMS == 0 {
		c.Reservation.BackoffMS = 2
	}
	if c.Worker.ExpirationSweepMinutes == 0 {
		c.Worker.ExpirationSweepMinutes = 1
	}
	if c.Worker.CompletionSweepMinutes == 0 {
		c.Worker.CompletionSweepMinutes = 10
	}
	if c.Worker.ReconcileSweepMinutes == 0 {
		c.Worker.ReconcileSweepMinutes = 30
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageDriverPostgres
	}
}

func (c *Config) applyEnv() error {
	setString(&c.HTTP.Address, "FLIGHTBOOKING_HTTP_ADDRESS")
	setString(&c.GRPC.Address, "FLIGHTBOOKING_GRPC_ADDRESS")
	setString(&c.Database.Host, "FLIGHTBOOKING_DB_HOST")
	setString(&c.Database.User, "FLIGHTBOOKING_DB_USER")
	setString(&c.Database.Password, "FLIGHTBOOKING_DB_PASSWORD")
	setString(&c.Database.Name, "FLIGHTBOOKING_DB_NAME")
	setString(&c.Redis.Addr, "FLIGHTBOOKING_REDIS_ADDR")
	setString(&c.Redis.Password, "FLIGHTBOOKING_REDIS_PASSWORD")
	setString(&c.Storage.Driver, "FLIGHTBOOKING_STORAGE_DRIVER")

	if v, ok := os.LookupEnv("FLIGHTBOOKING_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if err := setInt(&c.Database.Port, "FLIGHTBOOKING_DB_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Reservation.MaxAttempts, "FLIGHTBOOKING_RESERVATION_MAX_ATTEMPTS"); err != nil {
		return err
	}
	if err := setInt(&c.Reservation.BackoffMS, "FLIGHTBOOKING_RESERVATION_BACKOFF_MS"); err != nil {
		return err
	}
	return setInt(&c.Booking.HoldTTLMinutes, "FLIGHTBOOKING_HOLD_TTL_MINUTES")
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("database.host and database.name are required for the postgres driver"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Reservation.MaxAttempts <= 0 {
		errs = append(errs, errors.New("reservation.max_attempts must be positive"))
	}
	if c.Reservation.BackoffMS < 0 {
		errs = append(errs, errors.New("reservation.backoff_ms must not be negative"))
	}
	if c.Booking.HoldTTLMinutes <= 0 {
		errs = append(errs, errors.New("booking.hold_ttl_minutes must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s value %q is not a valid integer: %w", key, v, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
