package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineM(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{name: "same point", lat1: 42.7, lon1: 23.3, lat2: 42.7, lon2: 23.3, want: 0, delta: 1e-9},
		{name: "one degree of latitude", lat1: 0, lon1: 0, lat2: 1, lon2: 0, want: 111195, delta: 5},
		{name: "one degree of longitude at equator", lat1: 0, lon1: 0, lat2: 0, lon2: 1, want: 111195, delta: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HaversineM(tt.lat1, tt.lon1, tt.lat2, tt.lon2), tt.delta)
		})
	}
}

func TestProjectorAgreesWithHaversineAtShortRange(t *testing.T) {
	p := NewProjector(50.78, 6.08)
	x, y := p.Project(50.781, 6.081)
	assert.Greater(t, x, 0.0)
	assert.Greater(t, y, 0.0)
	assert.InDelta(t, HaversineM(50.78, 6.08, 50.781, 6.081), math.Hypot(x, y), 0.5)

	x0, y0 := p.Project(50.78, 6.08)
	assert.Equal(t, 0.0, x0)
	assert.Equal(t, 0.0, y0)
}

func TestBearingToHeading(t *testing.T) {
	assert.InDelta(t, math.Pi/2, BearingToHeading(0), 1e-9)
	assert.InDelta(t, 0, BearingToHeading(90), 1e-9)
	assert.InDelta(t, -math.Pi/2, BearingToHeading(180), 1e-9)
	assert.InDelta(t, math.Pi, math.Abs(BearingToHeading(270)), 1e-9)
}
