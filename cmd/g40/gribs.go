package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/globe40-course-data/internal/adapter/cds"
	httpadapter "github.com/couchcryptid/globe40-course-data/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/globe40-course-data/internal/adapter/kafka"
	"github.com/couchcryptid/globe40-course-data/internal/adapter/tsv"
	"github.com/couchcryptid/globe40-course-data/internal/config"
	"github.com/couchcryptid/globe40-course-data/internal/domain"
	"github.com/couchcryptid/globe40-course-data/internal/observability"
	"github.com/couchcryptid/globe40-course-data/internal/pipeline"
)

// gribsFlagEnv maps gribs flags to the environment variables they override.
var gribsFlagEnv = map[string]string{
	"log-level":     "LOG_LEVEL",
	"log-format":    "LOG_FORMAT",
	"http-addr":     "HTTP_ADDR",
	"percentage":    "PERCENTAGE_TO_CHANGE",
	"days":          "DAYS_EITHER_END",
	"year-shifts":   "YEAR_SHIFTS",
	"timesteps":     "TIMESTEPS",
	"variable-set":  "VARIABLE_SET",
	"output-dir":    "OUTPUT_DIR",
	"workers":       "WORKERS",
	"sink":          "SINK",
	"kafka-brokers": "KAFKA_BROKERS",
	"kafka-topic":   "KAFKA_TOPIC",
}

func NewGribsCommand() *cobra.Command {
	var skipInvalid bool

	cmd := &cobra.Command{
		Use:   "gribs <legs.tsv>",
		Short: "Retrieve historical GRIB files for every leg",
		Long: `Retrieve historical GRIB files for every leg.

Every setting can also be given as an environment variable; flags take
precedence. CDS credentials come from CDSAPI_URL/CDSAPI_KEY or ~/.cdsapirc.

With --sink stdout the planned requests are printed as JSON lines and nothing
is downloaded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFlagEnv(cmd, gribsFlagEnv); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runGribs(cmd.Context(), cfg, args[0], skipInvalid, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.String("http-addr", "", "serve /healthz, /readyz, /progress and /metrics on this address")
	f.Float64("percentage", 25, "change to each leg's duration, in percent")
	f.Int("days", 14, "days added to either end of each window")
	f.String("year-shifts", "-6,-5,-4,-3,-2", "comma-separated year offsets to request")
	f.String("timesteps", "6_hourly", "timestep granularity ("+joinKeys(domain.TimestepKeys())+")")
	f.String("variable-set", "waves", "variable set ("+joinKeys(domain.VariableSetKeys())+")")
	f.String("output-dir", "./gribs", "root directory for GRIB files")
	f.Int("workers", 1, fmt.Sprintf("concurrent retrievals (1-%d)", config.MaxWorkers))
	f.String("sink", config.SinkCDS, "where requests go (cds, kafka, stdout)")
	f.String("kafka-brokers", "localhost:9092", "comma-separated brokers for the kafka sink")
	f.String("kafka-topic", "reanalysis-requests", "topic for the kafka sink")
	f.BoolVar(&skipInvalid, "skip-invalid", false, "log and skip invalid legs instead of stopping")

	return cmd
}

// applyFlagEnv exports explicitly set flags to the environment so that
// config.Load sees a single merged view.
func applyFlagEnv(cmd *cobra.Command, m map[string]string) error {
	for name, key := range m {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := os.Setenv(key, f.Value.String()); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	return nil
}

func runGribs(ctx context.Context, cfg *config.Config, path string, skipInvalid bool, stdout io.Writer) error {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	spec, err := domain.NewRetrievalSpec(cfg.TimestepsKey, cfg.VariableSetKey, cfg.OutputDir)
	if err != nil {
		return err
	}
	planner, err := pipeline.NewPlanner(pipeline.PlanConfig{
		PercentageToChange: cfg.PercentageToChange,
		DaysEitherEnd:      cfg.DaysEitherEnd,
		YearShifts:         cfg.YearShifts,
		Retrieval:          spec,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	src, err := tsv.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	loader, closeLoader := newLoader(cfg, stdout, metrics, logger)
	defer closeLoader()

	p := pipeline.New(planner, loader, pipeline.Options{Workers: cfg.Workers, SkipInvalid: skipInvalid}, logger, metrics)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	if err := p.Run(ctx, src); err != nil {
		logger.Error("run stopped", "error", err)
		return err
	}
	return nil
}

func newLoader(cfg *config.Config, stdout io.Writer, metrics *observability.Metrics, logger *slog.Logger) (pipeline.Loader, func()) {
	switch cfg.Sink {
	case config.SinkKafka:
		w := kafkaadapter.NewWriter(cfg, logger)
		return w, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
	case config.SinkStdout:
		return pipeline.NewPrintLoader(stdout), func() {}
	default:
		return cds.NewClient(cfg.CDSURL, cfg.CDSKey, cfg.CDSTimeout, cfg.CDSPollInterval, metrics, logger), func() {}
	}
}
