package trajectory

import (
	"fmt"
)

// Logical state field names. Readers always ask for these; the adapter maps
// them onto whatever the upstream state actually calls them.
const (
	FieldX       = "x"
	FieldY       = "y"
	FieldVX      = "vx"
	FieldVY      = "vy"
	FieldHeading = "heading"
)

// StateFields lists the logical state fields in output order.
var StateFields = []string{FieldX, FieldY, FieldVX, FieldVY, FieldHeading}

var alternateFieldNames = map[string]string{
	FieldX:       "position_x",
	FieldY:       "position_y",
	FieldVX:      "velocity_x",
	FieldVY:      "velocity_y",
	FieldHeading: "orientation",
}

// State accessor names reported in Accessors.StateMethod.
const (
	StateMethodAtTimestamp = "StateAtTimestamp"
	StateMethodGeneric     = "State"
)

// AdapterError means the upstream agent objects lack an accessor the parse
// cannot work without. It is fatal for the whole parse.
type AdapterError struct {
	AgentID int
	Reason  string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("trajectory adapter: agent %d: %s", e.AgentID, e.Reason)
}

// Accessors is the fixed set of closures chosen by Detect.
type Accessors struct {
	// StateMethod records which upstream state accessor was selected.
	StateMethod string
	// FieldNames maps each logical field to the upstream name that is read.
	FieldNames map[string]string

	isActive    func(agent any, timestamp int64) bool
	getState    func(agent any, timestamp int64) (any, error)
	readField   func(state any, name string) (float64, bool)
	staticField func(agent any, name string) (any, bool)
}

// IsActive reports whether agent has a recorded state at timestamp.
func (a *Accessors) IsActive(agent any, timestamp int64) bool {
	return a.isActive(agent, timestamp)
}

// GetState returns the agent's state at timestamp. A nil state with a nil
// error means the agent has nothing to report there.
func (a *Accessors) GetState(agent any, timestamp int64) (any, error) {
	return a.getState(agent, timestamp)
}

// StateField reads a logical field from state. Fields the upstream state
// does not carry read as 0.
func (a *Accessors) StateField(state any, name string) float64 {
	upstream, ok := a.FieldNames[name]
	if !ok {
		upstream = name
	}
	v, ok := a.readField(state, upstream)
	if !ok {
		return 0
	}
	return v
}

// StaticField reads a time-invariant attribute of agent.
func (a *Accessors) StaticField(agent any, name string) (any, bool) {
	return a.staticField(agent, name)
}

// Detect probes a representative agent and returns accessors for the whole parse.
func Detect(rep Handle) (*Accessors, error) {
	if _, ok := rep.Object.(ActivityChecker); !ok {
		return nil, &AdapterError{AgentID: rep.ID, Reason: "no IsActive predicate"}
	}
	acc := &Accessors{
		isActive: func(agent any, ts int64) bool {
			ac, ok := agent.(ActivityChecker)
			return ok && ac.IsActive(ts)
		},
		staticField: noStaticField,
	}

	switch rep.Object.(type) {
	case StateAtTimestampGetter:
		acc.StateMethod = StateMethodAtTimestamp
		acc.getState = func(agent any, ts int64) (any, error) {
			g, ok := agent.(StateAtTimestampGetter)
			if !ok {
				return nil, fmt.Errorf("agent %T has no %s accessor", agent, StateMethodAtTimestamp)
			}
			return g.StateAtTimestamp(ts)
		}
	case StateGetter:
		acc.StateMethod = StateMethodGeneric
		acc.getState = func(agent any, ts int64) (any, error) {
			g, ok := agent.(StateGetter)
			if !ok {
				return nil, fmt.Errorf("agent %T has no %s accessor", agent, StateMethodGeneric)
			}
			return g.State(ts)
		}
	default:
		return nil, &AdapterError{AgentID: rep.ID, Reason: "no state accessor"}
	}

	if _, ok := rep.Object.(AttributeReader); ok {
		acc.staticField = func(agent any, name string) (any, bool) {
			r, ok := agent.(AttributeReader)
			if !ok {
				return nil, false
			}
			return r.Attribute(name)
		}
	}

	sample := sampleState(acc, rep.Object)
	acc.readField = fieldReaderFor(sample)
	acc.FieldNames = make(map[string]string, len(StateFields))
	for _, f := range StateFields {
		acc.FieldNames[f] = f
		if sample == nil {
			continue
		}
		if _, ok := acc.readField(sample, f); ok {
			continue
		}
		if alt := alternateFieldNames[f]; alt != "" {
			if _, ok := acc.readField(sample, alt); ok {
				acc.FieldNames[f] = alt
			}
		}
	}
	return acc, nil
}

// sampleState fetches the state at the representative's first timestamp.
// Any failure yields nil and field detection falls back to canonical names.
func sampleState(acc *Accessors, agent any) (state any) {
	ft, ok := agent.(FirstTimestamper)
	if !ok {
		return nil
	}
	ts, ok := ft.FirstTimestamp()
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			state = nil
		}
	}()
	s, err := acc.getState(agent, ts)
	if err != nil {
		return nil
	}
	return s
}

// fieldReaderFor picks the read strategy matching the sample state's shape.
func fieldReaderFor(sample any) func(state any, name string) (float64, bool) {
	switch sample.(type) {
	case FieldReader:
		return func(state any, name string) (float64, bool) {
			fr, ok := state.(FieldReader)
			if !ok {
				return 0, false
			}
			return fr.Field(name)
		}
	case map[string]float64:
		return func(state any, name string) (float64, bool) {
			m, ok := state.(map[string]float64)
			if !ok {
				return 0, false
			}
			v, ok := m[name]
			return v, ok
		}
	default:
		return readAnyField
	}
}

func readAnyField(state any, name string) (float64, bool) {
	switch s := state.(type) {
	case FieldReader:
		return s.Field(name)
	case map[string]float64:
		v, ok := s[name]
		return v, ok
	case map[string]any:
		v, ok := s[name]
		if !ok {
			return 0, false
		}
		f, err := ToFloat(v)
		return f, err == nil
	}
	return 0, false
}

func noStaticField(any, string) (any, bool) { return nil, false }
