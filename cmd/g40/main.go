package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/globe40-course-data/internal/adapter/tsv"
	"github.com/couchcryptid/globe40-course-data/internal/domain"
	"github.com/couchcryptid/globe40-course-data/internal/observability"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	logLevel  = "info"
	logFormat = "text"
)

func main() {
	if err := NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "g40",
		Short: "g40 plans and downloads historical weather data for race legs",
		Long: `g40 plans and downloads historical weather data for race legs.

Each leg's dates are widened, shifted back into past years, split into
calendar months, and requested from the Copernicus Climate Data Store as
ERA5 reanalysis GRIB files.`,
		SilenceUsage: true,
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", logLevel, "log level (debug, info, warn, error)")
	globalFlags.StringVar(&logFormat, "log-format", logFormat, "log format (json, text)")

	cmd.AddCommand(
		NewGribsCommand(),
		NewGeoJSONCommand(),
		NewCleanCommand(),
		NewDaysCommand(),
		NewExtendCommand(),
		NewVersionCommand(),
	)

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("g40 %s\n", version)
		},
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return observability.NewLoggerTo(cmd.ErrOrStderr(), logLevel, logFormat)
}

// readLegs reads and validates every leg of a schedule file.
func readLegs(path string) ([]domain.Leg, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := tsv.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r.ReadAll()
}
