// Package domain models the race schedule and the reanalysis requests derived
// from it.
//
// # Data Source
//
// The race schedule is a tab-separated file with one row per leg. Dates are
// plain calendar dates ("2026-09-05"); the departure gun time is carried
// separately as free text in start_date_time_utc and is only used for
// display.
//
// # Coordinates
//
// The published notice of race gives positions as degrees and decimal
// minutes:
//
//	"47° 15.00’ N"  →  47.250
//	"122° 30.00’ W" →  -122.500
//
// [ParseDMS] converts these; the cleaned schedule stores three decimals.
// Bounding boxes are always decimal degrees (bb_left, bb_bottom, bb_right,
// bb_top). The reanalysis API wants areas as [north, west, south, east], see
// [BoundingBox.Area].
//
// # Historical Windows
//
// Weather for a leg is approximated by the same calendar window in several
// past years. [Interval.Expand] builds each window:
//
//	shift both dates by YearShift years (Feb 29 clamps to Feb 28)
//	duration  = end - start, in days
//	factor    = 1 + PercentageToChange/100
//	duration' = floor(duration*factor) if factor < 1, else ceil(duration*factor)
//	window    = [start - DaysEitherEnd, start + duration' + DaysEitherEnd]
//
// Rounding is asymmetric: a shrinking window rounds down and a growing
// window rounds up. A factor of exactly 1 takes the ceiling branch.
//
// # Month Chunks
//
// The retrieval API accepts a single year and month per request, with an
// explicit list of days. [Interval.Months] walks the window one calendar
// month at a time and yields the days of each month inside it, as unpadded
// strings. A window from 2023-12-15 to 2024-01-10 yields two chunks:
// (2023, 12, 15..31) and (2024, 1, 1..10).
//
// # Validation
//
// Malformed dates and start-after-end ranges are reported as
// [*ValidationError] values carrying the offending text and, when known, the
// leg name and row. Nothing in this package corrects bad input silently.
package domain
