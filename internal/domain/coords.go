package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// dmsRe matches degrees and decimal minutes with a hemisphere letter, as
// published in the race notice: "47° 15.00’ N". The minute mark may be a
// typographic apostrophe, a prime, or a plain apostrophe.
var dmsRe = regexp.MustCompile(`^\s*(\d{1,3})°\s*([\d.]+)[’′']\s*([NSEW])\s*$`)

// ParseDMS converts a degrees/decimal-minutes coordinate to decimal degrees.
// Southern and western coordinates are negative.
func ParseDMS(s string) (float64, error) {
	m := dmsRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("coordinate %q is not in the expected format", s)
	}

	degrees, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: degrees: %w", s, err)
	}
	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, fmt.Errorf("coordinate %q: minutes: %w", s, err)
	}

	decimal := degrees + minutes/60
	if m[3] == "S" || m[3] == "W" {
		decimal = -decimal
	}
	return decimal, nil
}

// FormatDecimal renders decimal degrees with three places, the precision
// used in the cleaned schedule file.
func FormatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
