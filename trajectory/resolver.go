package trajectory

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Step is one fallback in a resolution chain. ok=false passes to the next step.
type Step[T any] func() (value T, ok bool)

// FirstOf returns a step yielding the value of the first successful step.
func FirstOf[T any](steps ...Step[T]) Step[T] {
	return func() (T, bool) {
		for _, s := range steps {
			if v, ok := s(); ok {
				return v, true
			}
		}
		var zero T
		return zero, false
	}
}

// Always is a terminal step that never fails.
func Always[T any](v T) Step[T] {
	return func() (T, bool) { return v, true }
}

// Static attribute names probed by the resolver.
const (
	AttrClass  = "class"
	AttrType   = "type"
	AttrLength = "length"
	AttrWidth  = "width"
	AttrHeight = "height"
)

// ClassMap is the authoritative id->class side-table loaded from dataset metadata.
type ClassMap map[int]string

// Footprint is a length/width pair.
type Footprint struct {
	Length float64
	Width  float64
}

// Resolver resolves static info for agents of one parse.
type Resolver struct {
	acc     *Accessors
	classes ClassMap
}

// NewResolver binds the resolver to the parse's accessors and side-table.
// classes may be nil.
func NewResolver(acc *Accessors, classes ClassMap) *Resolver {
	return &Resolver{acc: acc, classes: classes}
}

// Resolve returns the agent's class and floored footprint.
func (r *Resolver) Resolve(h Handle) StaticInfo {
	label, _ := r.ClassSteps(h)()
	class, _ := ParseClass(label)
	fp, _ := r.SizeSteps(h)()
	return StaticInfo{
		ID:     h.ID,
		Class:  class,
		Length: floorOrDefault(fp.Length, MinLength, DefaultLength),
		Width:  floorOrDefault(fp.Width, MinWidth, DefaultWidth),
	}
}

// ClassSteps is side-table, "class" field, "type" field, then the default label.
func (r *Resolver) ClassSteps(h Handle) Step[string] {
	return FirstOf(
		r.sideTableClass(h.ID),
		r.stringAttr(h.Object, AttrClass),
		r.stringAttr(h.Object, AttrType),
		Always(string(ClassStandard)),
	)
}

// SizeSteps is length/width fields, width/height inference, then defaults.
func (r *Resolver) SizeSteps(h Handle) Step[Footprint] {
	return FirstOf(
		r.lengthWidth(h.Object),
		r.inferFromWidthHeight(h.Object),
		Always(Footprint{Length: DefaultLength, Width: DefaultWidth}),
	)
}

func (r *Resolver) sideTableClass(id int) Step[string] {
	return func() (string, bool) {
		label, ok := r.classes[id]
		if !ok || strings.TrimSpace(label) == "" {
			return "", false
		}
		return label, true
	}
}

func (r *Resolver) stringAttr(agent any, name string) Step[string] {
	return func() (string, bool) {
		v, ok := r.acc.StaticField(agent, name)
		if !ok || v == nil {
			return "", false
		}
		s, ok := v.(string)
		if !ok {
			if st, isStringer := v.(interface{ String() string }); isStringer {
				s = st.String()
			}
		}
		if strings.TrimSpace(s) == "" {
			return "", false
		}
		return s, true
	}
}

func (r *Resolver) floatAttr(agent any, name string) (float64, bool) {
	v, ok := r.acc.StaticField(agent, name)
	if !ok || v == nil {
		return 0, false
	}
	f, err := ToFloat(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (r *Resolver) lengthWidth(agent any) Step[Footprint] {
	return func() (Footprint, bool) {
		l, okL := r.floatAttr(agent, AttrLength)
		w, okW := r.floatAttr(agent, AttrWidth)
		if !okL || !okW {
			return Footprint{}, false
		}
		return Footprint{Length: l, Width: w}, true
	}
}

func (r *Resolver) inferFromWidthHeight(agent any) Step[Footprint] {
	return func() (Footprint, bool) {
		w, okW := r.floatAttr(agent, AttrWidth)
		h, okH := r.floatAttr(agent, AttrHeight)
		if !okW || !okH || w <= 0 || h <= 0 {
			return Footprint{}, false
		}
		return Footprint{Length: math.Max(w, h), Width: math.Min(w, h)}, true
	}
}

func floorOrDefault(v, floor, def float64) float64 {
	if math.IsNaN(v) || v < floor {
		return def
	}
	return v
}

// ToFloat converts loosely typed upstream values to float64.
func ToFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case json.Number:
		return t.Float64()
	default:
		return 0, errors.New("not a float")
	}
}
