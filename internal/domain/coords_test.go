package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDMS(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"north", "47° 15.00’ N", "47.250"},
		{"west", "122° 30.00’ W", "-122.500"},
		{"south", "33° 55.20’ S", "-33.920"},
		{"east", "18° 25.50’ E", "18.425"},
		{"prime mark", "43° 17.40′ N", "43.290"},
		{"ascii apostrophe", "5° 22.80' W", "-5.380"},
		{"surrounding whitespace", "  0° 0.00’ N ", "0.000"},
		{"no space after degree", "12°30.00’ S", "-12.500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDMS(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatDecimal(got))
		})
	}
}

func TestParseDMS_Invalid(t *testing.T) {
	for _, in := range []string{"", "47.25", "47° 15.00’", "1234° 15.00’ N", "47° 15.00’ Q", "N 47° 15.00’"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDMS(in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "not in the expected format")
		})
	}
}
