package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

func NewDaysCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "days <start> <end>",
		Short: "Print the month chunks covering a date range",
		Long: `Print the month chunks covering a date range.

Dates are YYYY-MM-DD. Each chunk is printed as one JSON object.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunks, err := domain.Decompose(args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, c := range chunks {
				if err := enc.Encode(c); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func NewExtendCommand() *cobra.Command {
	var (
		percentage float64
		days       int
		yearShift  int
	)

	cmd := &cobra.Command{
		Use:   "extend <start> <end>",
		Short: "Print the widened, year-shifted window for a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := domain.Expand(args[0], args[1], percentage, days, yearShift)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", start, end)
			return err
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&percentage, "percentage", "p", 25, "change to the duration, in percent")
	f.IntVarP(&days, "days", "d", 14, "days added to either end")
	f.IntVarP(&yearShift, "year-shift", "y", 0, "years to shift the window by")

	return cmd
}

func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}
