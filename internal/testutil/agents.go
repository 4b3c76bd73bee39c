// Package testutil holds scripted upstream agents and transports shared by tests.
package testutil

import (
	"errors"
	"fmt"
)

// CanonicalState exposes canonical field names through Field.
type CanonicalState struct {
	X, Y, VX, VY, Heading float64
}

func (s CanonicalState) Field(name string) (float64, bool) {
	switch name {
	case "x":
		return s.X, true
	case "y":
		return s.Y, true
	case "vx":
		return s.VX, true
	case "vy":
		return s.VY, true
	case "heading":
		return s.Heading, true
	}
	return 0, false
}

// LinearAgent moves at constant velocity (m/s) while active in [From, To).
// It exposes the canonical StateAtTimestamp accessor.
type LinearAgent struct {
	From, To int64
	X0, Y0   float64
	VX, VY   float64
	Attrs    map[string]any
}

func (a *LinearAgent) IsActive(ts int64) bool { return ts >= a.From && ts < a.To }

func (a *LinearAgent) StateAtTimestamp(ts int64) (any, error) {
	if !a.IsActive(ts) {
		return nil, fmt.Errorf("timestamp %d outside [%d,%d)", ts, a.From, a.To)
	}
	dt := float64(ts-a.From) / 1000
	return CanonicalState{X: a.X0 + a.VX*dt, Y: a.Y0 + a.VY*dt, VX: a.VX, VY: a.VY}, nil
}

func (a *LinearAgent) FirstTimestamp() (int64, bool) { return a.From, a.To > a.From }

func (a *LinearAgent) Attribute(name string) (any, bool) {
	v, ok := a.Attrs[name]
	return v, ok
}

// AlternateAgent exposes the generic State accessor and returns maps keyed
// by the alternate field names (position_x, velocity_x, orientation...).
// OmitVelocity drops the velocity fields from every state.
type AlternateAgent struct {
	From, To     int64
	X, Y         float64
	Orientation  float64
	OmitVelocity bool
	Attrs        map[string]any
}

func (a *AlternateAgent) IsActive(ts int64) bool { return ts >= a.From && ts < a.To }

func (a *AlternateAgent) State(ts int64) (any, error) {
	if !a.IsActive(ts) {
		return nil, nil
	}
	m := map[string]float64{
		"position_x":  a.X,
		"position_y":  a.Y,
		"orientation": a.Orientation,
	}
	if !a.OmitVelocity {
		m["velocity_x"] = 1
		m["velocity_y"] = 2
	}
	return m, nil
}

func (a *AlternateAgent) FirstTimestamp() (int64, bool) { return a.From, a.To > a.From }

func (a *AlternateAgent) Attribute(name string) (any, bool) {
	v, ok := a.Attrs[name]
	return v, ok
}

// ErrScripted is returned by FaultyAgent at its failing timestamps.
var ErrScripted = errors.New("scripted read failure")

// FaultyAgent wraps a LinearAgent and fails reads at chosen timestamps,
// either with ErrScripted or, when Panic is set, by panicking.
type FaultyAgent struct {
	LinearAgent
	FailAt map[int64]bool
	Panic  bool
}

func (a *FaultyAgent) StateAtTimestamp(ts int64) (any, error) {
	if a.FailAt[ts] {
		if a.Panic {
			panic("scripted panic")
		}
		return nil, ErrScripted
	}
	return a.LinearAgent.StateAtTimestamp(ts)
}

// ActivityOnlyAgent has an IsActive predicate and nothing else.
type ActivityOnlyAgent struct{}

func (ActivityOnlyAgent) IsActive(int64) bool { return true }

// StatelessAgent has a state accessor but no IsActive predicate.
type StatelessAgent struct{}

func (StatelessAgent) StateAtTimestamp(int64) (any, error) { return CanonicalState{}, nil }
