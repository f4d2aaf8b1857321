package domain

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"time"
)

// Dataset is the reanalysis product every request is made against.
const Dataset = "reanalysis-era5-single-levels"

var (
	ErrUnknownTimesteps   = errors.New("unknown timesteps key")
	ErrUnknownVariableSet = errors.New("unknown variable set key")
)

var timestepSchedules = map[string][]string{
	"hourly":         hoursEvery(1),
	"3_hourly":       hoursEvery(3),
	"4_hourly":       hoursEvery(4),
	"6_hourly":       hoursEvery(6),
	"12_hourly":      hoursEvery(12),
	"daily_noon":     {"12:00"},
	"daily_midnight": {"00:00"},
	"sched_hours":    hoursAt(3, 7, 10, 13, 16, 20),
}

var variableSets = map[string][]string{
	"ten_metre_wind": {"10m_u_component_of_wind", "10m_v_component_of_wind"},
	"mslp":           {"mean_sea_level_pressure"},
	"waves":          {"mean_wave_direction", "mean_wave_period", "significant_height_of_combined_wind_waves_and_swell"},
}

// Timesteps returns the clock times ("HH:00") for a named timestep granularity.
func Timesteps(key string) ([]string, error) {
	times, ok := timestepSchedules[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownTimesteps, key, TimestepKeys())
	}
	return slices.Clone(times), nil
}

// VariableSet returns the physical variables requested under a named set.
func VariableSet(key string) ([]string, error) {
	vars, ok := variableSets[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownVariableSet, key, VariableSetKeys())
	}
	return slices.Clone(vars), nil
}

// TimestepKeys lists the known timestep granularities in sorted order.
func TimestepKeys() []string {
	return slices.Sorted(maps.Keys(timestepSchedules))
}

// VariableSetKeys lists the known variable sets in sorted order.
func VariableSetKeys() []string {
	return slices.Sorted(maps.Keys(variableSets))
}

func hoursEvery(step int) []string {
	var hours []int
	for h := 0; h < 24; h += step {
		hours = append(hours, h)
	}
	return hoursAt(hours...)
}

func hoursAt(hours ...int) []string {
	out := make([]string, len(hours))
	for i, h := range hours {
		out[i] = fmt.Sprintf("%02d:00", h)
	}
	return out
}

// RetrievalRequest is one month of reanalysis data for one leg window.
type RetrievalRequest struct {
	Leg            string     `json:"leg"`
	Window         Interval   `json:"window"`
	Year           int        `json:"year"`
	Month          time.Month `json:"month"`
	Days           []string   `json:"days"`
	TimestepsKey   string     `json:"timesteps_key"`
	Times          []string   `json:"time"`
	VariableSetKey string     `json:"variable_set_key"`
	Variables      []string   `json:"variable"`
	Area           [4]float64 `json:"area"` // north, west, south, east
	OutputDir      string     `json:"output_dir"`
	PlannedAt      time.Time  `json:"planned_at"`
}

// FileName is the GRIB file name for the request. Exactly one file exists per
// leg, variable set, year-month and timestep granularity.
func (r RetrievalRequest) FileName() string {
	return fmt.Sprintf("G40_%s__%s__%d_%d__%s.grib", r.Leg, r.VariableSetKey, r.Year, int(r.Month), r.TimestepsKey)
}

// OutputPath is the full path the GRIB file is written to.
func (r RetrievalRequest) OutputPath() string {
	return filepath.Join(r.OutputDir, r.FileName())
}

// RetrievalSpec fixes the variables, timesteps and output root used for
// every request of a run.
type RetrievalSpec struct {
	TimestepsKey   string
	VariableSetKey string
	OutputRoot     string

	times     []string
	variables []string
}

// NewRetrievalSpec resolves the named timestep and variable set keys.
func NewRetrievalSpec(timestepsKey, variableSetKey, outputRoot string) (RetrievalSpec, error) {
	times, err := Timesteps(timestepsKey)
	if err != nil {
		return RetrievalSpec{}, err
	}
	variables, err := VariableSet(variableSetKey)
	if err != nil {
		return RetrievalSpec{}, err
	}
	return RetrievalSpec{
		TimestepsKey:   timestepsKey,
		VariableSetKey: variableSetKey,
		OutputRoot:     outputRoot,
		times:          times,
		variables:      variables,
	}, nil
}

// Request builds the retrieval request for one month chunk of a leg window.
// Files for a leg go to a subdirectory of OutputRoot named after the leg.
func (s RetrievalSpec) Request(leg Leg, window Interval, chunk MonthChunk) RetrievalRequest {
	return RetrievalRequest{
		Leg:            leg.Name,
		Window:         window,
		Year:           chunk.Year,
		Month:          chunk.Month,
		Days:           chunk.Days,
		TimestepsKey:   s.TimestepsKey,
		Times:          s.times,
		VariableSetKey: s.VariableSetKey,
		Variables:      s.variables,
		Area:           leg.Box.Area(),
		OutputDir:      filepath.Join(s.OutputRoot, leg.Name),
		PlannedAt:      clock.Now().UTC(),
	}
}
