package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/globe40-course-data/internal/domain"
)

// Schedule column names.
const (
	ColLegName          = "leg_name"
	ColStartCity        = "start_city"
	ColFinishCity       = "finish_city"
	ColStartDate        = "start_date"
	ColApproxFinishDate = "approx_finish_date"
	ColStartDateTimeUTC = "start_date_time_utc"
	ColStartLat         = "start_lat"
	ColStartLon         = "start_lon"
	ColFinishLat        = "finish_lat"
	ColFinishLon        = "finish_lon"
	ColBBLeft           = "bb_left"
	ColBBBottom         = "bb_bottom"
	ColBBRight          = "bb_right"
	ColBBTop            = "bb_top"
	ColLegColorCode     = "leg_color_code"
)

// requiredColumns must be present in the header of a leg schedule.
var requiredColumns = []string{
	ColLegName, ColStartDate, ColApproxFinishDate,
	ColBBLeft, ColBBBottom, ColBBRight, ColBBTop,
}

// Reader decodes leg records from a tab-separated schedule with a header row.
// It implements pipeline.LegSource.
type Reader struct {
	r      *csv.Reader
	header []string
	index  map[string]int
	row    int
}

// NewReader reads and checks the header. A missing required column fails
// the whole file.
func NewReader(r io.Reader) (*Reader, error) {
	cr := newCSVReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing required columns: %s", strings.Join(missing, ", "))
	}

	return &Reader{r: cr, header: header, index: index}, nil
}

// Header returns the column names in file order.
func (r *Reader) Header() []string {
	return r.header
}

// Next returns the next leg. It returns io.EOF after the last row. A row that
// fails validation yields a *domain.ValidationError naming the leg and row;
// reading may continue past it.
func (r *Reader) Next() (domain.Leg, error) {
	record, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Leg{}, io.EOF
		}
		r.row++
		return domain.Leg{}, fmt.Errorf("read row %d: %w", r.row, err)
	}
	r.row++
	return r.parseLeg(record)
}

// ReadAll returns every leg in the file, stopping at the first error.
func (r *Reader) ReadAll() ([]domain.Leg, error) {
	var legs []domain.Leg
	for {
		leg, err := r.Next()
		if errors.Is(err, io.EOF) {
			return legs, nil
		}
		if err != nil {
			return nil, err
		}
		legs = append(legs, leg)
	}
}

func (r *Reader) parseLeg(record []string) (domain.Leg, error) {
	p := rowParser{record: record, index: r.index}

	leg := domain.Leg{
		Name:             p.text(ColLegName),
		StartCity:        p.text(ColStartCity),
		FinishCity:       p.text(ColFinishCity),
		StartDateTimeUTC: p.text(ColStartDateTimeUTC),
		ColorCode:        p.text(ColLegColorCode),
	}
	startText, finishText := p.text(ColStartDate), p.text(ColApproxFinishDate)

	switch {
	case leg.Name == "":
		p.fail(fmt.Errorf("%w: %s is empty", domain.ErrInvalidRecord, ColLegName))
	case !validLegName(leg.Name):
		p.fail(fmt.Errorf("%w: %s %q cannot be used as a directory name", domain.ErrInvalidRecord, ColLegName, leg.Name))
	}
	leg.Start = domain.Geo{Lat: p.optionalFloat(ColStartLat), Lon: p.optionalFloat(ColStartLon)}
	leg.Finish = domain.Geo{Lat: p.optionalFloat(ColFinishLat), Lon: p.optionalFloat(ColFinishLon)}
	leg.Box = domain.BoundingBox{
		Left:   p.float(ColBBLeft),
		Bottom: p.float(ColBBBottom),
		Right:  p.float(ColBBRight),
		Top:    p.float(ColBBTop),
	}
	if p.err != nil {
		return domain.Leg{}, &domain.ValidationError{Leg: leg.Name, Row: r.row, Start: startText, End: finishText, Err: p.err}
	}

	iv, err := domain.ParseInterval(startText, finishText)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return domain.Leg{}, ve.ForLeg(leg.Name, r.row)
		}
		return domain.Leg{}, err
	}
	leg.StartDate, leg.ApproxFinishDate = iv.Start, iv.End
	return leg, nil
}

// validLegName reports whether name is a single path element, since each
// leg's files go to a subdirectory named after it.
func validLegName(name string) bool {
	return filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

// rowParser pulls typed fields out of one record, keeping the first error.
type rowParser struct {
	record []string
	index  map[string]int
	err    error
}

func (p *rowParser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *rowParser) text(col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(p.record) {
		return ""
	}
	return strings.TrimSpace(p.record[i])
}

func (p *rowParser) float(col string) float64 {
	s := p.text(col)
	if s == "" {
		p.fail(fmt.Errorf("%w: %s is empty", domain.ErrInvalidRecord, col))
		return 0
	}
	return p.parse(col, s)
}

func (p *rowParser) optionalFloat(col string) float64 {
	s := p.text(col)
	if s == "" {
		return 0
	}
	return p.parse(col, s)
}

func (p *rowParser) parse(col, s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidRecord, col, s))
		return 0
	}
	return v
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	return cr
}
