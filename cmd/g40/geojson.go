package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/globe40-course-data/internal/adapter/geojson"
)

func NewGeoJSONCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "geojson <legs.tsv>",
		Short: "Write leg bounding boxes and start points as GeoJSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			legs, err := readLegs(args[0])
			if err != nil {
				return err
			}

			data, err := geojson.FeatureCollection(legs).MarshalJSON()
			if err != nil {
				return fmt.Errorf("encode geojson: %w", err)
			}

			if output == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			newLogger(cmd).Info("geojson written", "output", output, "legs", len(legs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
