package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "sg-test-key"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InEpsilon(t, 16.224044, cfg.Latitude, 1e-9)
	assert.InEpsilon(t, 108.084327, cfg.Longitude, 1e-9)
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.Timezone)
	require.NotNil(t, cfg.Location)

	assert.Equal(t, "https://api.stormglass.io/v2", cfg.StormglassBaseURL)
	assert.Equal(t, []string{testKey}, cfg.StormglassKeys)
	assert.Equal(t, "sg", cfg.StormglassSource)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)

	assert.Equal(t, "data/history.csv", cfg.HistoryCSV)
	assert.Equal(t, "site/data.json", cfg.SiteJSON)

	assert.Equal(t, 7, cfg.LookbackDays)
	assert.Equal(t, 10, cfg.WindowDays)
	assert.Equal(t, 10, cfg.BlockDays)
	assert.Equal(t, 8, cfg.MinPressureSamples)
	assert.Equal(t, 2, cfg.RoundDecimals)

	assert.Equal(t, 6*time.Hour, cfg.RunInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "journal-daily-records", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("LATITUDE", "10.5")
	t.Setenv("LONGITUDE", "106.25")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("STORMGLASS_BASE_URL", "http://localhost:9999/v2")
	t.Setenv("STORMGLASS_SOURCE", "noaa")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("HISTORY_CSV", "/tmp/h.csv")
	t.Setenv("SITE_JSON", "/tmp/d.json")
	t.Setenv("LOOKBACK_DAYS", "3")
	t.Setenv("WINDOW_DAYS", "5")
	t.Setenv("BLOCK_DAYS", "4")
	t.Setenv("MIN_PRESSURE_SAMPLES", "12")
	t.Setenv("ROUND_DECIMALS", "3")
	t.Setenv("RUN_INTERVAL", "1h")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-topic")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InEpsilon(t, 10.5, cfg.Latitude, 1e-9)
	assert.InEpsilon(t, 106.25, cfg.Longitude, 1e-9)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "http://localhost:9999/v2", cfg.StormglassBaseURL)
	assert.Equal(t, "noaa", cfg.StormglassSource)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "/tmp/h.csv", cfg.HistoryCSV)
	assert.Equal(t, "/tmp/d.json", cfg.SiteJSON)
	assert.Equal(t, 3, cfg.LookbackDays)
	assert.Equal(t, 5, cfg.WindowDays)
	assert.Equal(t, 4, cfg.BlockDays)
	assert.Equal(t, 12, cfg.MinPressureSamples)
	assert.Equal(t, 3, cfg.RoundDecimals)
	assert.Equal(t, 1*time.Hour, cfg.RunInterval)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-topic", cfg.KafkaTopic)
}

func TestLoad_KeysInPriorityOrder(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", "first")
	t.Setenv("STORMGLASS_KEY_2", "second")
	t.Setenv("STORMGLASS_KEY_3", "third")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, cfg.StormglassKeys)
}

func TestLoad_SkipsUnsetKeys(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_2", "only-second")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"only-second"}, cfg.StormglassKeys)
}

func TestLoad_NoKeys(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORMGLASS_KEY")
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("TIMEZONE", "Not/AZone")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEZONE")
}

func TestLoad_InvalidRequestTimeout(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REQUEST_TIMEOUT")
}

func TestLoad_NegativeRunInterval(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("RUN_INTERVAL", "-1h")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_INTERVAL")
}

func TestLoad_InvalidWindowDays(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("WINDOW_DAYS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WINDOW_DAYS")
}

func TestLoad_InvalidRoundDecimals(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("ROUND_DECIMALS", "9")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROUND_DECIMALS")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("STORMGLASS_KEY_1", testKey)
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}
