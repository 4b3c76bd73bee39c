package frames

import "math"

// Admission bounds which agents appear in a frame by distance from a fixed
// reference point. The zero value admits everything.
type Admission struct {
	enabled   bool
	reference Point
	radius    float64
}

// NewAdmission returns a filter around reference. A radius <= 0 disables it.
func NewAdmission(reference Point, radius float64) Admission {
	if radius <= 0 || math.IsNaN(radius) {
		return Admission{}
	}
	return Admission{enabled: true, reference: reference, radius: radius}
}

// Enabled reports whether the filter drops anything at all.
func (a Admission) Enabled() bool { return a.enabled }

// Reference returns the reference point and whether the filter is enabled.
func (a Admission) Reference() (Point, bool) { return a.reference, a.enabled }

// Admit reports whether a raw (unrounded) position lies within the radius.
func (a Admission) Admit(x, y float64) bool {
	if !a.enabled {
		return true
	}
	return math.Hypot(x-a.reference.X, y-a.reference.Y) <= a.radius
}

// Centroid averages pts. ok is false for an empty input.
func Centroid(pts []Point) (c Point, ok bool) {
	if len(pts) == 0 {
		return Point{}, false
	}
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}, true
}
