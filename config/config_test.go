package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
http:
  address: ":8081"
database:
  host: localhost
  name: flights
kafka:
  brokers: ["kafka:9092"]
reservation:
  max_attempts: 4
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.GRPC.Address)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 4, cfg.Reservation.MaxAttempts)
	assert.Equal(t, 2*time.Millisecond, cfg.Reservation.Backoff())
	assert.Equal(t, 15*time.Minute, cfg.Booking.HoldTTL())
	assert.Equal(t, 30*time.Second, cfg.Booking.CacheTTL())
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "booking-events", cfg.Kafka.BookingEventsTopic)
	assert.True(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "host=localhost port=5432 user= password= dbname=flights sslmode=disable", cfg.Database.DSN())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("FLIGHTBOOKING_STORAGE_DRIVER", "memory")
	t.Setenv("FLIGHTBOOKING_RESERVATION_MAX_ATTEMPTS", "12")
	t.Setenv("FLIGHTBOOKING_KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("FLIGHTBOOKING_REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 12, cfg.Reservation.MaxAttempts)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadConfig_BadEnvInteger(t *testing.T) {
	t.Setenv("FLIGHTBOOKING_DB_PORT", "five")

	_, err := LoadConfig(writeConfig(t, sample))
	assert.ErrorContains(t, err, "FLIGHTBOOKING_DB_PORT")
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	_, err = LoadConfig(writeConfig(t, "http: [oops"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	cfg, err := Parse([]byte(`storage: {driver: sqlite}`))
	require.NoError(t, err)
	cfg.applyDefaults()
	assert.ErrorContains(t, cfg.Validate(), `storage.driver "sqlite"`)

	cfg, err = Parse([]byte(`storage: {driver: postgres}`))
	require.NoError(t, err)
	cfg.applyDefaults()
	assert.ErrorContains(t, cfg.Validate(), "database.host")

	cfg, err = Parse([]byte(`{storage: {driver: memory}, reservation: {backoff_ms: -1}}`))
	require.NoError(t, err)
	cfg.applyDefaults()
	assert.ErrorContains(t, cfg.Validate(), "backoff_ms")

	cfg, err = Parse([]byte(`storage: {driver: memory}`))
	require.NoError(t, err)
	cfg.applyDefaults()
	assert.NoError(t, cfg.Validate())
}
