package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// Sink names accepted by SINK.
const (
	SinkCDS    = "cds"
	SinkKafka  = "kafka"
	SinkStdout = "stdout"
)

// MaxWorkers caps concurrent retrievals.
const MaxWorkers = 16

// Config holds all run settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Window expansion.
	PercentageToChange float64
	DaysEitherEnd      int
	YearShifts         []int

	// Retrieval selection.
	TimestepsKey   string
	VariableSetKey string
	OutputDir      string
	Workers        int
	Sink           string

	// Climate Data Store configuration.
	CDSURL          string
	CDSKey          string
	CDSTimeout      time.Duration
	CDSPollInterval time.Duration

	// Kafka sink configuration.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	percentage, err := parseFloatEnv("PERCENTAGE_TO_CHANGE", 25)
	if err != nil {
		return nil, err
	}
	days, err := parseIntEnv("DAYS_EITHER_END", 14)
	if err != nil {
		return nil, err
	}
	yearShifts, err := ParseYearShifts(sharedcfg.EnvOrDefault("YEAR_SHIFTS", "-6,-5,-4,-3,-2"))
	if err != nil {
		return nil, fmt.Errorf("invalid YEAR_SHIFTS: %w", err)
	}
	workers, err := parseIntEnv("WORKERS", 1)
	if err != nil {
		return nil, err
	}
	cdsTimeout, err := parseDurationEnv("CDS_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDurationEnv("CDS_POLL_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		PercentageToChange: percentage,
		DaysEitherEnd:      days,
		YearShifts:         yearShifts,

		TimestepsKey:   sharedcfg.EnvOrDefault("TIMESTEPS", "6_hourly"),
		VariableSetKey: sharedcfg.EnvOrDefault("VARIABLE_SET", "waves"),
		OutputDir:      sharedcfg.EnvOrDefault("OUTPUT_DIR", "./gribs"),
		Workers:        workers,
		Sink:           sharedcfg.EnvOrDefault("SINK", SinkCDS),

		CDSURL:          os.Getenv("CDSAPI_URL"),
		CDSKey:          os.Getenv("CDSAPI_KEY"),
		CDSTimeout:      cdsTimeout,
		CDSPollInterval: pollInterval,

		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "reanalysis-requests"),
	}

	if cfg.CDSURL == "" || cfg.CDSKey == "" {
		if err := cfg.loadCDSRC(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	if c.DaysEitherEnd < 0 {
		return errors.New("DAYS_EITHER_END must be >= 0")
	}
	if len(c.YearShifts) == 0 {
		return errors.New("YEAR_SHIFTS must list at least one year")
	}
	if c.Workers < 1 || c.Workers > MaxWorkers {
		return fmt.Errorf("WORKERS must be between 1 and %d", MaxWorkers)
	}
	if _, err := domain.Timesteps(c.TimestepsKey); err != nil {
		return fmt.Errorf("invalid TIMESTEPS: %w", err)
	}
	if _, err := domain.VariableSet(c.VariableSetKey); err != nil {
		return fmt.Errorf("invalid VARIABLE_SET: %w", err)
	}

	switch c.Sink {
	case SinkCDS:
		if c.CDSURL == "" || c.CDSKey == "" {
			return errors.New("SINK=cds requires CDSAPI_URL and CDSAPI_KEY (or a ~/.cdsapirc file)")
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required for SINK=kafka")
		}
		if c.KafkaTopic == "" {
			return errors.New("KAFKA_TOPIC is required for SINK=kafka")
		}
	case SinkStdout:
	default:
		return fmt.Errorf("invalid SINK %q: want %s, %s or %s", c.Sink, SinkCDS, SinkKafka, SinkStdout)
	}
	return nil
}

// cdsrc is the credentials file format shared with the Python cdsapi client.
type cdsrc struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// loadCDSRC fills missing CDS credentials from CDSAPI_RC or ~/.cdsapirc.
// A missing file is not an error.
func (c *Config) loadCDSRC() error {
	path := os.Getenv("CDSAPI_RC")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".cdsapirc")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var rc cdsrc
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if c.CDSURL == "" {
		c.CDSURL = rc.URL
	}
	if c.CDSKey == "" {
		c.CDSKey = rc.Key
	}
	return nil
}

// ParseYearShifts parses a comma-separated list of integers such as "-6,-5,-4".
func ParseYearShifts(s string) ([]int, error) {
	var shifts []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("year shift %q is not an integer", part)
		}
		shifts = append(shifts, n)
	}
	return shifts, nil
}

func parseIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, s)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not a number", key, s)
	}
	return v, nil
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
