package domain

import (
	"iter"
	"slices"
	"strconv"
	"time"
)

// MonthChunk lists the days of one calendar month that fall inside an interval.
// Days are ascending, contiguous and unpadded ("1".."31"), which is the form
// the reanalysis API accepts for its day parameter.
type MonthChunk struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Days  []string   `json:"days"`
}

// Months yields one chunk per calendar month touched by the interval, in
// calendar order. The sequence is finite and can be ranged over repeatedly.
func (iv Interval) Months() iter.Seq[MonthChunk] {
	return func(yield func(MonthChunk) bool) {
		for cur := iv.Start; !cur.After(iv.End); cur = cur.firstOfNextMonth() {
			endDay := DaysIn(cur.Year, cur.Month)
			if cur.Year == iv.End.Year && cur.Month == iv.End.Month {
				endDay = iv.End.Day
			}
			if !yield(MonthChunk{Year: cur.Year, Month: cur.Month, Days: dayRange(cur.Day, endDay)}) {
				return
			}
		}
	}
}

// Decompose splits the inclusive range startDate..endDate into month chunks.
func Decompose(startDate, endDate string) ([]MonthChunk, error) {
	iv, err := ParseInterval(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return slices.Collect(iv.Months()), nil
}

func dayRange(from, to int) []string {
	days := make([]string, 0, to-from+1)
	for d := from; d <= to; d++ {
		days = append(days, strconv.Itoa(d))
	}
	return days
}
