package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// coordinateColumns hold degrees/minutes text in the raw schedule.
var coordinateColumns = []string{ColStartLat, ColStartLon, ColFinishLat, ColFinishLon}

// Clean copies a raw schedule from r to w, converting the start and finish
// coordinates from degrees and decimal minutes to decimal degrees. Every
// other column is passed through unchanged.
func Clean(r io.Reader, w io.Writer) error {
	cr := newCSVReader(r)
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("read header: empty file")
		}
		return fmt.Errorf("read header: %w", err)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	var convert []int
	for i, name := range header {
		if slices.Contains(coordinateColumns, name) {
			convert = append(convert, i)
		}
	}

	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", row, err)
		}
		for _, i := range convert {
			v, err := domain.ParseDMS(record[i])
			if err != nil {
				return fmt.Errorf("row %d: %s: %w", row, header[i], err)
			}
			record[i] = domain.FormatDecimal(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
