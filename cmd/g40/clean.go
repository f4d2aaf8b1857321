package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/globe40-course-data/internal/adapter/tsv"
)

func NewCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <raw.tsv>",
		Short: "Convert degree-minute coordinates to decimal degrees",
		Long: `Convert degree-minute coordinates to decimal degrees.

Rewrites start_lat, start_lon, finish_lat and finish_lon from the form
47° 15.00’ N to 47.250 and writes the schedule to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return tsv.Clean(f, cmd.OutOrStdout())
		},
	}
}
