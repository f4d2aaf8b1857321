package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCDSURL = "https://cds.example.test/api"
	testCDSKey = "00000000-1111-2222-3333-444444444444"
)

// isolate points HOME and CDSAPI_RC away from the developer's real credentials.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CDSAPI_RC", "")
	t.Setenv("CDSAPI_URL", "")
	t.Setenv("CDSAPI_KEY", "")
	return home
}

func withCredentials(t *testing.T) {
	t.Helper()
	isolate(t)
	t.Setenv("CDSAPI_URL", testCDSURL)
	t.Setenv("CDSAPI_KEY", testCDSKey)
}

func TestLoad_Defaults(t *testing.T) {
	withCredentials(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.InDelta(t, 25.0, cfg.PercentageToChange, 0)
	assert.Equal(t, 14, cfg.DaysEitherEnd)
	assert.Equal(t, []int{-6, -5, -4, -3, -2}, cfg.YearShifts)
	assert.Equal(t, "6_hourly", cfg.TimestepsKey)
	assert.Equal(t, "waves", cfg.VariableSetKey)
	assert.Equal(t, "./gribs", cfg.OutputDir)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, SinkCDS, cfg.Sink)
	assert.Equal(t, testCDSURL, cfg.CDSURL)
	assert.Equal(t, testCDSKey, cfg.CDSKey)
	assert.Equal(t, 60*time.Second, cfg.CDSTimeout)
	assert.Equal(t, 5*time.Second, cfg.CDSPollInterval)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "reanalysis-requests", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	withCredentials(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("PERCENTAGE_TO_CHANGE", "-12.5")
	t.Setenv("DAYS_EITHER_END", "3")
	t.Setenv("YEAR_SHIFTS", " -1, -10 ")
	t.Setenv("TIMESTEPS", "sched_hours")
	t.Setenv("VARIABLE_SET", "ten_metre_wind")
	t.Setenv("OUTPUT_DIR", "/data/gribs")
	t.Setenv("WORKERS", "4")
	t.Setenv("SINK", "kafka")
	t.Setenv("CDS_TIMEOUT", "2m")
	t.Setenv("CDS_POLL_INTERVAL", "250ms")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-requests")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.InDelta(t, -12.5, cfg.PercentageToChange, 0)
	assert.Equal(t, 3, cfg.DaysEitherEnd)
	assert.Equal(t, []int{-1, -10}, cfg.YearShifts)
	assert.Equal(t, "sched_hours", cfg.TimestepsKey)
	assert.Equal(t, "ten_metre_wind", cfg.VariableSetKey)
	assert.Equal(t, "/data/gribs", cfg.OutputDir)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, SinkKafka, cfg.Sink)
	assert.Equal(t, 2*time.Minute, cfg.CDSTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.CDSPollInterval)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-requests", cfg.KafkaTopic)
}

func TestLoad_CDSRCFile(t *testing.T) {
	home := isolate(t)
	rc := "url: https://cds.climate.copernicus.eu/api\nkey: abc-123\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cdsapirc"), []byte(rc), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://cds.climate.copernicus.eu/api", cfg.CDSURL)
	assert.Equal(t, "abc-123", cfg.CDSKey)
}

func TestLoad_CDSRCEnvPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "rc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://rc.example.test\nkey: from-file\n"), 0o600))
	t.Setenv("CDSAPI_RC", path)
	t.Setenv("CDSAPI_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://rc.example.test", cfg.CDSURL)
	assert.Equal(t, "from-env", cfg.CDSKey)
}

func TestLoad_MalformedCDSRC(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".cdsapirc"), []byte("url: [unclosed"), 0o600))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".cdsapirc")
}

func TestLoad_CDSSinkWithoutCredentials(t *testing.T) {
	isolate(t)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CDSAPI_KEY")
}

func TestLoad_StdoutSinkNeedsNoCredentials(t *testing.T) {
	isolate(t)
	t.Setenv("SINK", "stdout")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SinkStdout, cfg.Sink)
}

func TestLoad_PercentageBelowMinus100(t *testing.T) {
	withCredentials(t)
	t.Setenv("PERCENTAGE_TO_CHANGE", "-150")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, -150.0, cfg.PercentageToChange, 0)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"PERCENTAGE_TO_CHANGE", "lots"},
		{"DAYS_EITHER_END", "two"},
		{"DAYS_EITHER_END", "-1"},
		{"YEAR_SHIFTS", "-2,last"},
		{"YEAR_SHIFTS", " , "},
		{"WORKERS", "0"},
		{"WORKERS", "17"},
		{"TIMESTEPS", "weekly"},
		{"VARIABLE_SET", "humidity"},
		{"SINK", "s3"},
		{"CDS_TIMEOUT", "bad"},
		{"CDS_POLL_INTERVAL", "-1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			withCredentials(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseYearShifts(t *testing.T) {
	got, err := ParseYearShifts("-6,-5,-4,-3,-2")
	require.NoError(t, err)
	assert.Equal(t, []int{-6, -5, -4, -3, -2}, got)

	got, err = ParseYearShifts("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseYearShifts("1.5")
	assert.Error(t, err)
}
