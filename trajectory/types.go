package trajectory

import (
	"fmt"
	"strings"
)

// Handle is an opaque reference to one upstream trajectory object.
// Object is probed by Detect; it is not retained once the frame table is built.
type Handle struct {
	ID     int
	Object any
}

// TimeRange is a half-open [Start, End) span in milliseconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Empty reports whether the range holds no timestamps.
func (r TimeRange) Empty() bool { return r.End <= r.Start }

// Duration returns End-Start, or 0 for an empty range.
func (r TimeRange) Duration() int64 {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start
}

// Clip intersects r with w.
func (r TimeRange) Clip(w TimeRange) TimeRange {
	out := r
	if w.Start > out.Start {
		out.Start = w.Start
	}
	if w.End < out.End {
		out.End = w.End
	}
	if out.End < out.Start {
		out.End = out.Start
	}
	return out
}

func (r TimeRange) String() string { return fmt.Sprintf("[%d,%d)", r.Start, r.End) }

// Capability interfaces an upstream agent object may implement.

// ActivityChecker is required: the resampler cannot run without it.
type ActivityChecker interface {
	IsActive(timestamp int64) bool
}

// StateAtTimestampGetter is the canonical state accessor.
type StateAtTimestampGetter interface {
	StateAtTimestamp(timestamp int64) (any, error)
}

// StateGetter is the generic state accessor used when the canonical one is absent.
type StateGetter interface {
	State(timestamp int64) (any, error)
}

// FirstTimestamper exposes the first recorded timestamp, used to fetch a sample state.
type FirstTimestamper interface {
	FirstTimestamp() (int64, bool)
}

// AttributeReader exposes time-invariant fields such as size and class.
type AttributeReader interface {
	Attribute(name string) (any, bool)
}

// FieldReader is implemented by state values that expose named numeric fields.
// Plain map[string]float64 and map[string]any states are accepted as well.
type FieldReader interface {
	Field(name string) (float64, bool)
}

// Class is the semantic class of an agent.
type Class string

const (
	ClassStandard Class = "Car"
	ClassHeavy    Class = "Truck"
)

var classAliases = map[string]Class{
	"car":        ClassStandard,
	"standard":   ClassStandard,
	"passenger":  ClassStandard,
	"van":        ClassStandard,
	"truck":      ClassHeavy,
	"heavy":      ClassHeavy,
	"bus":        ClassHeavy,
	"truck_bus":  ClassHeavy,
	"lorry":      ClassHeavy,
	"trailer":    ClassHeavy,
	"heavy_duty": ClassHeavy,
}

// ParseClass maps an upstream class label onto the enumerated set.
// Labels outside the set are coerced to ClassStandard and ok is false.
func ParseClass(label string) (c Class, ok bool) {
	if c, found := classAliases[strings.ToLower(strings.TrimSpace(label))]; found {
		return c, true
	}
	return ClassStandard, false
}

// Footprint floors and defaults.
const (
	MinLength     = 1.0
	MinWidth      = 0.5
	DefaultLength = 4.5
	DefaultWidth  = 2.0
)

// StaticInfo is resolved once per agent before resampling.
type StaticInfo struct {
	ID     int     `json:"id"`
	Class  Class   `json:"class"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}
