package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/theoremus-urban-solutions/trajectory-replay/frames"
	"github.com/theoremus-urban-solutions/trajectory-replay/ingest"
	"github.com/theoremus-urban-solutions/trajectory-replay/mapdata"
	"github.com/theoremus-urban-solutions/trajectory-replay/metrics"
	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

// ErrInvalidConfig wraps request validation failures.
var ErrInvalidConfig = errors.New("invalid session config")

// TrajectorySource is the ingest side consumed by the creator.
type TrajectorySource interface {
	ParseTrajectories(ctx context.Context, kind string, fileID int, folder string, window *trajectory.TimeRange) (ingest.Result, error)
	LoadClassMap(kind string, folder string, fileID int) (trajectory.ClassMap, error)
}

// MapLoader returns parsed map data for a path; "" means no map.
type MapLoader interface {
	Load(path string) (*mapdata.MapData, error)
}

// CreatorOptions are process-wide limits and defaults.
type CreatorOptions struct {
	// MaxConcurrentParses bounds parses running at once; <= 0 means 1.
	MaxConcurrentParses int64
	// DefaultFrameStep applies when a request leaves frame_step at 0.
	DefaultFrameStep int
	// BaseInterval is the native sampling interval in ms; 0 means 40.
	BaseInterval int64
	// MaxDurationMS caps every window; 0 means no cap.
	MaxDurationMS int64
}

// Creator parses and stores sessions.
type Creator struct {
	registry *Registry
	source   TrajectorySource
	maps     MapLoader
	opts     CreatorOptions
	sem      *semaphore.Weighted
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Collectors

	newID func() string
	now   func() time.Time
}

func NewCreator(registry *Registry, source TrajectorySource, maps MapLoader, opts CreatorOptions, logger *slog.Logger, m *metrics.Collectors) *Creator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxConcurrentParses <= 0 {
		opts.MaxConcurrentParses = 1
	}
	if opts.DefaultFrameStep < 1 {
		opts.DefaultFrameStep = 1
	}
	return &Creator{
		registry: registry,
		source:   source,
		maps:     maps,
		opts:     opts,
		sem:      semaphore.NewWeighted(opts.MaxConcurrentParses),
		validate: validator.New(),
		logger:   logger,
		metrics:  m,
		newID:    NewID,
		now:      time.Now,
	}
}

// NewID returns "sid_" followed by 8 hex characters of a random uuid.
func NewID() string {
	u := uuid.New()
	return "sid_" + hex.EncodeToString(u[:4])
}

// Validate applies defaults to cfg and checks it.
func (c *Creator) Validate(cfg *Config) error {
	if cfg.FrameStep == 0 {
		cfg.FrameStep = c.opts.DefaultFrameStep
	}
	if err := c.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if (cfg.StampStart == nil) != (cfg.StampEnd == nil) {
		return fmt.Errorf("%w: stamp_start and stamp_end must be given together", ErrInvalidConfig)
	}
	if cfg.StampStart != nil && *cfg.StampEnd <= *cfg.StampStart {
		return fmt.Errorf("%w: stamp_end must be greater than stamp_start", ErrInvalidConfig)
	}
	return nil
}

// window returns the requested [start, end), or nil for the whole recording.
func (c *Creator) window(cfg Config) *trajectory.TimeRange {
	if cfg.StampStart == nil || cfg.StampEnd == nil {
		return nil
	}
	w := trajectory.TimeRange{Start: *cfg.StampStart, End: *cfg.StampEnd}
	return &w
}

// capDuration shortens r to the request and process duration caps.
func (c *Creator) capDuration(r trajectory.TimeRange, cfg Config) trajectory.TimeRange {
	limit := c.opts.MaxDurationMS
	if cfg.MaxDurationMS != nil && (limit == 0 || *cfg.MaxDurationMS < limit) {
		limit = *cfg.MaxDurationMS
	}
	if limit > 0 && r.Duration() > limit {
		r.End = r.Start + limit
	}
	return r
}

// Create runs map load, ingest, adapter detection, static resolution and
// resampling, then stores the session. Nothing is stored on error.
func (c *Creator) Create(ctx context.Context, cfg Config) (s *Session, err error) {
	start := c.now()
	defer func() {
		if err != nil {
			c.metrics.ParseFailed(FailureReason(err))
		}
	}()

	if err := c.Validate(&cfg); err != nil {
		return nil, err
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	md, err := c.maps.Load(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load map: %w", err)
	}

	res, err := c.source.ParseTrajectories(ctx, cfg.Dataset, cfg.FileID, cfg.DatasetPath, c.window(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse trajectories: %w", err)
	}
	if len(res.Agents) == 0 || res.Range.Empty() {
		return nil, fmt.Errorf("%w: %s file %d has no agents in range", frames.ErrEmptyResult, cfg.Dataset, cfg.FileID)
	}
	span := c.capDuration(res.Range, cfg)

	classes, err := c.source.LoadClassMap(cfg.Dataset, cfg.DatasetPath, cfg.FileID)
	if err != nil {
		c.logger.Warn("class side-table unavailable", "dataset", cfg.Dataset, "file_id", cfg.FileID, "error", err)
		classes = nil
	}

	acc, err := trajectory.Detect(res.Agents[0])
	if err != nil {
		return nil, err
	}
	resolver := trajectory.NewResolver(acc, classes)
	statics := make(map[int]trajectory.StaticInfo, len(res.Agents))
	for _, h := range res.Agents {
		statics[h.ID] = resolver.Resolve(h)
	}

	table, err := frames.NewResampler(acc, c.logger).Build(res.Agents, statics, frames.Options{
		Range:        span,
		FrameStep:    cfg.FrameStep,
		BaseInterval: c.opts.BaseInterval,
		Radius:       cfg.PerceptionRange,
	})
	if err != nil {
		return nil, err
	}

	s = &Session{
		ID:        c.newID(),
		Config:    cfg,
		MapData:   md,
		Table:     table,
		CreatedAt: c.now(),
	}
	if err := c.registry.Put(s); err != nil {
		return nil, err
	}

	elapsed := c.now().Sub(start)
	c.metrics.SessionCreated(elapsed, c.registry.Len())
	c.logger.Info("session created",
		"session_id", s.ID, "dataset", cfg.Dataset, "file_id", cfg.FileID,
		"state_method", acc.StateMethod, "range", span.String(),
		"total_frames", table.TotalFrames, "participants", table.ParticipantCount,
		"frame_step", table.FrameStep, "elapsed", elapsed)
	return s, nil
}

// FailureReason maps a Create error to a short metrics label.
func FailureReason(err error) string {
	var adapterErr *trajectory.AdapterError
	switch {
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ingest.ErrDatasetNotFound):
		return "dataset_not_found"
	case errors.Is(err, mapdata.ErrMapNotFound):
		return "map_not_found"
	case errors.Is(err, ingest.ErrUnsupportedDataset):
		return "unsupported_dataset"
	case errors.Is(err, frames.ErrEmptyResult):
		return "empty_result"
	case errors.As(err, &adapterErr):
		return "adapter"
	case errors.Is(err, ErrDuplicateSession):
		return "duplicate_session"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}
