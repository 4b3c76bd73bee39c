package stream

import (
	"github.com/theoremus-urban-solutions/trajectory-replay/frames"
)

// Message types on the wire.
const (
	TypeStartSessionStream = "start_session_stream"
	TypePing               = "ping"

	TypePong            = "pong"
	TypeConnected       = "connected"
	TypeStreamStarted   = "session_stream_started"
	TypeFrame           = "simulation_frame"
	TypeStreamCompleted = "session_stream_completed"
	TypeError           = "error"
)

// Frame rate limits.
const (
	DefaultFPS = 25
	MinFPS     = 1
	MaxFPS     = 60
)

// Command is an inbound client message.
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	FPS       *int   `json:"fps,omitempty"`
}

type Pong struct {
	Type string `json:"type"`
}

type Connected struct {
	Type     string `json:"type"`
	ClientID string `json:"client_id"`
}

type StreamStarted struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	TotalFrames int    `json:"total_frames"`
	FPS         int    `json:"fps"`
}

type FrameData struct {
	Timestamp int64                  `json:"timestamp"`
	Vehicles  []frames.AgentSnapshot `json:"vehicles"`
}

type FrameMessage struct {
	Type        string    `json:"type"`
	SessionID   string    `json:"session_id"`
	FrameNumber int       `json:"frame_number"`
	Data        FrameData `json:"data"`
}

type StreamCompleted struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ErrorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func newError(sessionID, msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, SessionID: sessionID, Message: msg}
}

func newFrameMessage(sessionID string, f frames.Frame) FrameMessage {
	return FrameMessage{
		Type:        TypeFrame,
		SessionID:   sessionID,
		FrameNumber: f.Index,
		Data:        FrameData{Timestamp: f.Timestamp, Vehicles: f.Agents},
	}
}

// FPSLimits bounds requested frame rates.
type FPSLimits struct {
	Default int
	Max     int
}

// Normalize returns the default for a missing or zero fps and clamps
// everything else to [MinFPS, Max].
func (l FPSLimits) Normalize(requested *int) int {
	def, hi := l.Default, l.Max
	if hi < MinFPS {
		hi = MaxFPS
	}
	if def < MinFPS || def > hi {
		def = min(DefaultFPS, hi)
	}
	if requested == nil || *requested == 0 {
		return def
	}
	return max(MinFPS, min(*requested, hi))
}
