package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_SamePoint(t *testing.T) {
	assert.Zero(t, Distance(45.4215, -75.6972, 45.4215, -75.6972))
}

func TestDistance_KnownPairs(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64 // metres
		tolerance              float64
	}{
		{
			// Parliament Hill to the National Gallery, Ottawa.
			name: "short urban hop",
			lat1: 45.4236, lng1: -75.7009,
			lat2: 45.4295, lng2: -75.6989,
			want: 670, tolerance: 30,
		},
		{
			// Ottawa to Toronto, city centre to city centre.
			name: "intercity",
			lat1: 45.4215, lng1: -75.6972,
			lat2: 43.6532, lng2: -79.3832,
			want: 351900, tolerance: 2000,
		},
		{
			name: "one degree of latitude",
			lat1: 0, lng1: 0,
			lat2: 1, lng2: 0,
			want: 111195, tolerance: 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestCheck(t *testing.T) {
	// ~670 m apart; 700 m radius passes, 500 m does not.
	ok, d := Check(45.4236, -75.7009, 45.4295, -75.6989, 700)
	assert.True(t, ok)
	assert.Greater(t, d, 500.0)

	ok, d2 := Check(45.4236, -75.7009, 45.4295, -75.6989, 500)
	assert.False(t, ok)
	assert.Equal(t, d, d2)
}
