package domain

import "errors"

// Geo represents a WGS-84 latitude/longitude coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is the rectangular sailing area of a leg, in decimal degrees.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

// Area returns the box in the reanalysis API's [north, west, south, east] order.
func (b BoundingBox) Area() [4]float64 {
	return [4]float64{b.Top, b.Left, b.Bottom, b.Right}
}

// Leg is one stage of the race as read from the schedule file.
type Leg struct {
	Name             string      `json:"leg_name"`
	StartCity        string      `json:"start_city"`
	FinishCity       string      `json:"finish_city"`
	StartDate        Date        `json:"start_date"`
	ApproxFinishDate Date        `json:"approx_finish_date"`
	StartDateTimeUTC string      `json:"start_date_time_utc,omitempty"`
	Start            Geo         `json:"start"`
	Finish           Geo         `json:"finish"`
	Box              BoundingBox `json:"bounding_box"`
	ColorCode        string      `json:"leg_color_code,omitempty"`
}

// Interval returns the leg's nominal start..approximate finish window.
func (l Leg) Interval() (Interval, error) {
	iv, err := NewInterval(l.StartDate, l.ApproxFinishDate)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Interval{}, ve.ForLeg(l.Name, 0)
		}
		return Interval{}, err
	}
	return iv, nil
}
