package session

import (
	"time"

	"github.com/theoremus-urban-solutions/trajectory-replay/frames"
	"github.com/theoremus-urban-solutions/trajectory-replay/mapdata"
)

// Config is the session creation request, echoed back on the Session.
type Config struct {
	Dataset     string `json:"dataset" validate:"required"`
	FileID      int    `json:"file_id" validate:"gte=1"`
	DatasetPath string `json:"dataset_path" validate:"required"`
	MapPath     string `json:"map_path"`
	// StampStart and StampEnd bound the window in ms; both or neither.
	StampStart    *int64 `json:"stamp_start" validate:"omitempty,gte=0"`
	StampEnd      *int64 `json:"stamp_end" validate:"omitempty,gte=0"`
	MaxDurationMS *int64 `json:"max_duration_ms,omitempty" validate:"omitempty,gt=0"`
	// PerceptionRange is the admission radius in metres; <= 0 disables it.
	PerceptionRange float64 `json:"perception_range"`
	FrameStep       int     `json:"frame_step" validate:"gte=0,lte=1000"`
}

// Session is one parsed recording slice.
type Session struct {
	ID        string             `json:"session_id"`
	Config    Config             `json:"config"`
	MapData   *mapdata.MapData   `json:"map_data"`
	Table     *frames.FrameTable `json:"-"`
	CreatedAt time.Time          `json:"created_at"`
}

// TotalFrames is the number of frames a stream of this session sends.
func (s *Session) TotalFrames() int {
	if s == nil || s.Table == nil {
		return 0
	}
	return s.Table.TotalFrames
}

// TrajectoryMetadata summarises the frame table.
type TrajectoryMetadata struct {
	TotalFrames      int           `json:"total_frames"`
	FrameStep        int           `json:"frame_step"`
	ParticipantCount int           `json:"participant_count"`
	CreatedAt        float64       `json:"created_at"`
	FilterReference  *frames.Point `json:"filter_reference,omitempty"`
}

func (s *Session) Metadata() TrajectoryMetadata {
	m := TrajectoryMetadata{CreatedAt: float64(s.CreatedAt.UnixMilli()) / 1000}
	if s.Table != nil {
		m.TotalFrames = s.Table.TotalFrames
		m.FrameStep = s.Table.FrameStep
		m.ParticipantCount = s.Table.ParticipantCount
		m.FilterReference = s.Table.FilterReference
	}
	return m
}
