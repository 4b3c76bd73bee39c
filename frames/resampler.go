package frames

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

// Options controls one resampling pass.
type Options struct {
	// Range is the recording's actual [start, end) span in milliseconds.
	Range trajectory.TimeRange
	// FrameStep multiplies BaseInterval; must be >= 1.
	FrameStep int
	// BaseInterval is the native sampling interval; 0 means DefaultBaseInterval.
	BaseInterval int64
	// Radius enables the admission filter when > 0.
	Radius float64
}

// EffectiveStep returns BaseInterval*FrameStep in milliseconds.
func (o Options) EffectiveStep() int64 {
	base := o.BaseInterval
	if base <= 0 {
		base = DefaultBaseInterval
	}
	return base * int64(o.FrameStep)
}

// FrameCount returns the number of frames Build emits for o.
func (o Options) FrameCount() int {
	step := o.EffectiveStep()
	if o.Range.Empty() || step <= 0 {
		return 0
	}
	return int((o.Range.Duration() + step - 1) / step)
}

var errNonFinite = errors.New("non-finite position")

// Resampler turns per-agent trajectories into a dense frame table using
// accessors detected once for the parse.
type Resampler struct {
	acc    *trajectory.Accessors
	logger *slog.Logger
}

func NewResampler(acc *trajectory.Accessors, logger *slog.Logger) *Resampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resampler{acc: acc, logger: logger}
}

// Build walks the range at the effective step and emits one frame per
// timestamp, including frames with no agents. Frame indices count from 0.
// One agent's failed read never drops the frame or other agents.
func (r *Resampler) Build(agents []trajectory.Handle, statics map[int]trajectory.StaticInfo, opts Options) (*FrameTable, error) {
	if opts.FrameStep < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidFrameStep, opts.FrameStep)
	}
	n := opts.FrameCount()
	if n == 0 {
		return nil, fmt.Errorf("%w: range %s", ErrEmptyResult, opts.Range)
	}
	step := opts.EffectiveStep()
	warnings := NewWarningAggregator()

	admission := Admission{}
	if opts.Radius > 0 {
		if ref, ok := r.referencePoint(agents, opts.Range.Start); ok {
			admission = NewAdmission(ref, opts.Radius)
		} else {
			r.logger.Info("admission filter disabled: no agent active at first timestamp",
				"timestamp", opts.Range.Start, "radius", opts.Radius)
		}
	}

	table := &FrameTable{
		Frames:           make([]Frame, 0, n),
		ParticipantCount: len(agents),
		FrameStep:        opts.FrameStep,
	}
	if ref, ok := admission.Reference(); ok {
		table.FilterReference = &ref
	}

	for i := 0; i < n; i++ {
		ts := opts.Range.Start + int64(i)*step
		frame := Frame{Index: i, Timestamp: ts, Agents: make([]AgentSnapshot, 0)}
		for _, h := range agents {
			snap, ok := r.snapshot(h, ts, warnings)
			if !ok {
				continue
			}
			if !admission.Admit(snap.X, snap.Y) {
				continue
			}
			info, found := statics[h.ID]
			if !found {
				warnings.Add(WarningMissingStatic, strconv.Itoa(h.ID))
				info = trajectory.StaticInfo{
					ID:     h.ID,
					Class:  trajectory.ClassStandard,
					Length: trajectory.DefaultLength,
					Width:  trajectory.DefaultWidth,
				}
			}
			frame.Agents = append(frame.Agents, AgentSnapshot{
				ID:      h.ID,
				X:       round(snap.X, 3),
				Y:       round(snap.Y, 3),
				VX:      round(snap.VX, 3),
				VY:      round(snap.VY, 3),
				Heading: round(snap.Heading, 3),
				Length:  round(info.Length, 2),
				Width:   round(info.Width, 2),
				Class:   info.Class,
			})
		}
		table.Frames = append(table.Frames, frame)
	}
	table.TotalFrames = len(table.Frames)

	warnings.LogAll(r.logger, "range", opts.Range.String(), "frame_step", opts.FrameStep)
	return table, nil
}

type rawState struct {
	X, Y, VX, VY, Heading float64
}

// snapshot reads one agent at ts. ok is false when the agent is inactive,
// has no state there, or the read failed.
func (r *Resampler) snapshot(h trajectory.Handle, ts int64, warnings *WarningAggregator) (s rawState, ok bool) {
	active, err := r.safeIsActive(h.Object, ts)
	if err != nil {
		warnings.Add(WarningActivityCheck, example(h.ID, ts))
		return rawState{}, false
	}
	if !active {
		return rawState{}, false
	}
	s, present, err := r.readState(h.Object, ts)
	if err != nil {
		kind := WarningStateReadFailed
		if errors.Is(err, errNonFinite) {
			kind = WarningNonFinitePosition
		}
		warnings.Add(kind, example(h.ID, ts))
		return rawState{}, false
	}
	return s, present
}

func (r *Resampler) safeIsActive(agent any, ts int64) (active bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("IsActive panicked: %v", p)
		}
	}()
	return r.acc.IsActive(agent, ts), nil
}

func (r *Resampler) readState(agent any, ts int64) (s rawState, present bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("state read panicked: %v", p)
		}
	}()
	state, err := r.acc.GetState(agent, ts)
	if err != nil {
		return rawState{}, false, err
	}
	if state == nil {
		return rawState{}, false, nil
	}
	s = rawState{
		X:       r.acc.StateField(state, trajectory.FieldX),
		Y:       r.acc.StateField(state, trajectory.FieldY),
		VX:      finiteOrZero(r.acc.StateField(state, trajectory.FieldVX)),
		VY:      finiteOrZero(r.acc.StateField(state, trajectory.FieldVY)),
		Heading: finiteOrZero(r.acc.StateField(state, trajectory.FieldHeading)),
	}
	if !finite(s.X) || !finite(s.Y) {
		return rawState{}, false, errNonFinite
	}
	return s, true, nil
}

// referencePoint is the centroid of all agents active at ts.
// Read failures here are reported by the frame loop, not twice.
func (r *Resampler) referencePoint(agents []trajectory.Handle, ts int64) (Point, bool) {
	pts := make([]Point, 0, len(agents))
	scratch := NewWarningAggregator()
	for _, h := range agents {
		if s, ok := r.snapshot(h, ts, scratch); ok {
			pts = append(pts, Point{X: s.X, Y: s.Y})
		}
	}
	return Centroid(pts)
}

func example(id int, ts int64) string {
	return fmt.Sprintf("agent %d @%dms", id, ts)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func finiteOrZero(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return v
}

func round(v float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(v*p) / p
}
