package frames

import (
	"errors"

	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

// DefaultBaseInterval is the native sampling interval of LevelX recordings (25 Hz).
const DefaultBaseInterval int64 = 40

var (
	// ErrEmptyResult means the parse produced no frames: there is no
	// trajectory data over the requested window.
	ErrEmptyResult = errors.New("no trajectory data for the requested window")
	// ErrInvalidFrameStep is returned for a frame step below 1.
	ErrInvalidFrameStep = errors.New("frame step must be >= 1")
)

// AgentSnapshot is one agent's state within one frame.
type AgentSnapshot struct {
	ID      int              `json:"id"`
	X       float64          `json:"x"`
	Y       float64          `json:"y"`
	VX      float64          `json:"vx"`
	VY      float64          `json:"vy"`
	Heading float64          `json:"heading"`
	Length  float64          `json:"length"`
	Width   float64          `json:"width"`
	Class   trajectory.Class `json:"class"`
}

// Frame is one sampled instant. Agents is never nil; an empty frame still
// occupies its index.
type Frame struct {
	Index     int             `json:"index"`
	Timestamp int64           `json:"timestamp"`
	Agents    []AgentSnapshot `json:"vehicles"`
}

// Point is a planar position in the recording's coordinate system.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FrameTable is built once and read-only afterwards. Frames[i].Index == i.
type FrameTable struct {
	Frames           []Frame `json:"frames"`
	TotalFrames      int     `json:"total_frames"`
	ParticipantCount int     `json:"participant_count"`
	FrameStep        int     `json:"frame_step"`
	// FilterReference is set when the admission filter was active.
	FilterReference *Point `json:"filter_reference,omitempty"`
}

// Frame returns the frame at index i.
func (t *FrameTable) Frame(i int) (Frame, bool) {
	if t == nil || i < 0 || i >= len(t.Frames) {
		return Frame{}, false
	}
	return t.Frames[i], true
}
