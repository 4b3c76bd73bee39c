package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

// DefaultFrameRate is used when a recording has no recordingMeta file.
const DefaultFrameRate = 25.0

// LevelXParser reads LevelX drone recordings.
type LevelXParser struct {
	logger *slog.Logger
}

func NewLevelXParser(logger *slog.Logger) *LevelXParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &LevelXParser{logger: logger}
}

// LevelX file names for one recording.
func tracksFile(folder string, fileID int) string {
	return filepath.Join(folder, fmt.Sprintf("%02d_tracks.csv", fileID))
}

func tracksMetaFile(folder string, fileID int) string {
	return filepath.Join(folder, fmt.Sprintf("%02d_tracksMeta.csv", fileID))
}

func recordingMetaFile(folder string, fileID int) string {
	return filepath.Join(folder, fmt.Sprintf("%02d_recordingMeta.csv", fileID))
}

func (p *LevelXParser) ParseTrajectories(ctx context.Context, kind string, fileID int, folder string, window *trajectory.TimeRange) (Result, error) {
	if st, err := os.Stat(folder); err != nil || !st.IsDir() {
		return Result{}, fmt.Errorf("%w: folder %s", ErrDatasetNotFound, folder)
	}
	path := tracksFile(folder, fileID)
	if _, err := os.Stat(path); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
	}

	var (
		tracks    map[int]*levelxAgent
		meta      map[int]map[string]any
		frameRate float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tracks, err = readTracks(gctx, path)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = readTracksMeta(tracksMetaFile(folder, fileID))
		return err
	})
	g.Go(func() error {
		var err error
		frameRate, err = readFrameRate(recordingMetaFile(folder, fileID))
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("%s recording %02d: %w", kind, fileID, err)
	}

	if len(tracks) == 0 {
		return Result{}, nil
	}
	minFrame, maxFrame := math.MaxInt, math.MinInt
	for _, a := range tracks {
		minFrame = min(minFrame, a.firstFrame)
		maxFrame = max(maxFrame, a.lastFrame)
	}

	interval := int64(math.Round(1000 / frameRate))
	actual := trajectory.TimeRange{
		Start: frameToMS(minFrame, frameRate),
		End:   frameToMS(maxFrame, frameRate) + interval,
	}
	span := clipRange(actual, window)

	res := Result{Range: span, Agents: make([]trajectory.Handle, 0, len(tracks))}
	for id, a := range tracks {
		a.frameRate = frameRate
		for k, v := range meta[id] {
			a.attrs[k] = v
		}
		first := frameToMS(a.firstFrame, frameRate)
		last := frameToMS(a.lastFrame, frameRate)
		if last < span.Start || first >= span.End {
			continue
		}
		res.Agents = append(res.Agents, trajectory.Handle{ID: id, Object: a})
	}
	sortHandles(res.Agents)

	p.logger.Info("levelx recording parsed",
		"kind", kind, "file_id", fileID, "tracks", len(tracks), "agents", len(res.Agents),
		"frame_rate", frameRate, "range", span.String())
	return res, nil
}

func (p *LevelXParser) LoadClassMap(kind string, folder string, fileID int) (trajectory.ClassMap, error) {
	meta, err := readTracksMeta(tracksMetaFile(folder, fileID))
	if err != nil {
		return nil, err
	}
	out := make(trajectory.ClassMap, len(meta))
	for id, attrs := range meta {
		if c, ok := attrs[trajectory.AttrClass].(string); ok && c != "" {
			out[id] = c
		}
	}
	return out, nil
}

// trackLayout holds the column indices of one tracks.csv header.
type trackLayout struct {
	highD                 bool
	id, frame, x, y       int
	vx, vy, heading       int
	width, height, length int
}

func detectLayout(head []string) (trackLayout, error) {
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	l := trackLayout{
		frame:  idx("frame"),
		vx:     idx("xVelocity"),
		vy:     idx("yVelocity"),
		width:  idx("width"),
		height: idx("height"),
		length: idx("length"),
	}
	if id := idx("trackId"); id >= 0 {
		l.id, l.x, l.y, l.heading = id, idx("xCenter"), idx("yCenter"), idx("heading")
	} else {
		l.highD = true
		l.id, l.x, l.y, l.heading = idx("id"), idx("x"), idx("y"), -1
	}
	if l.id < 0 || l.frame < 0 || l.x < 0 || l.y < 0 {
		return l, fmt.Errorf("unrecognised tracks header %v", head)
	}
	return l, nil
}

func readTracks(ctx context.Context, path string) (map[int]*levelxAgent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", filepath.Base(path), err)
	}
	layout, err := detectLayout(append([]string(nil), head...))
	if err != nil {
		return nil, err
	}

	agents := map[int]*levelxAgent{}
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), line, err)
		}
		id, err1 := strconv.Atoi(strings.TrimSpace(rec[layout.id]))
		frame, err2 := strconv.Atoi(strings.TrimSpace(rec[layout.frame]))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%s line %d: bad id or frame", filepath.Base(path), line)
		}
		s := levelxState{
			X:  column(rec, layout.x),
			Y:  column(rec, layout.y),
			VX: column(rec, layout.vx),
			VY: column(rec, layout.vy),
		}
		if layout.highD {
			// highD positions are the bounding box corner; width runs along x.
			s.X += column(rec, layout.width) / 2
			s.Y += column(rec, layout.height) / 2
			s.Heading = math.Atan2(s.VY, s.VX)
		} else {
			s.Heading = column(rec, layout.heading) * math.Pi / 180
		}

		a := agents[id]
		if a == nil {
			a = &levelxAgent{
				states:     map[int]levelxState{},
				attrs:      map[string]any{},
				firstFrame: frame,
				lastFrame:  frame,
			}
			for name, i := range map[string]int{"width": layout.width, "height": layout.height, "length": layout.length} {
				if i >= 0 {
					a.attrs[name] = column(rec, i)
				}
			}
			agents[id] = a
		}
		a.states[frame] = s
		a.firstFrame = min(a.firstFrame, frame)
		a.lastFrame = max(a.lastFrame, frame)
	}
	return agents, nil
}

// readTracksMeta returns per-track static attributes keyed by lower-case
// column name. A missing file yields an empty map.
func readTracksMeta(path string) (map[int]map[string]any, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[int]map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	out := map[int]map[string]any{}
	if len(rows) == 0 {
		return out, nil
	}
	head := rows[0]
	idCol := -1
	for i, h := range head {
		switch strings.TrimSpace(h) {
		case "trackId":
			idCol = i
		case "id":
			if idCol < 0 {
				idCol = i
			}
		}
	}
	if idCol < 0 {
		return out, nil
	}
	for _, rec := range rows[1:] {
		id, err := strconv.Atoi(strings.TrimSpace(rec[idCol]))
		if err != nil {
			continue
		}
		attrs := map[string]any{}
		for i, h := range head {
			name := strings.ToLower(strings.TrimSpace(h))
			switch name {
			case trajectory.AttrClass:
				attrs[name] = strings.TrimSpace(rec[i])
			case trajectory.AttrWidth, trajectory.AttrHeight, trajectory.AttrLength:
				attrs[name] = column(rec, i)
			}
		}
		out[id] = attrs
	}
	return out, nil
}

// readFrameRate reads frameRate from recordingMeta, falling back to
// DefaultFrameRate when the file or column is missing.
func readFrameRate(path string) (float64, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultFrameRate, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(rows) < 2 {
		return DefaultFrameRate, nil
	}
	for i, h := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), "frameRate") && i < len(rows[1]) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rows[1][i]), 64); err == nil && v > 0 {
				return v, nil
			}
		}
	}
	return DefaultFrameRate, nil
}

func column(rec []string, i int) float64 {
	if i < 0 || i >= len(rec) {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0
	}
	return v
}

func frameToMS(frame int, frameRate float64) int64 {
	return int64(math.Round(float64(frame) * 1000 / frameRate))
}

func msToFrame(ts int64, frameRate float64) int {
	return int(math.Round(float64(ts) * frameRate / 1000))
}

// levelxState uses canonical field names.
type levelxState struct {
	X, Y, VX, VY, Heading float64
}

func (s levelxState) Field(name string) (float64, bool) {
	switch name {
	case trajectory.FieldX:
		return s.X, true
	case trajectory.FieldY:
		return s.Y, true
	case trajectory.FieldVX:
		return s.VX, true
	case trajectory.FieldVY:
		return s.VY, true
	case trajectory.FieldHeading:
		return s.Heading, true
	}
	return 0, false
}

// levelxAgent is one track. Timestamps map to the nearest recorded frame.
type levelxAgent struct {
	states                map[int]levelxState
	attrs                 map[string]any
	firstFrame, lastFrame int
	frameRate             float64
}

func (a *levelxAgent) IsActive(ts int64) bool {
	_, ok := a.states[msToFrame(ts, a.frameRate)]
	return ok
}

func (a *levelxAgent) StateAtTimestamp(ts int64) (any, error) {
	s, ok := a.states[msToFrame(ts, a.frameRate)]
	if !ok {
		return nil, fmt.Errorf("no state at %dms", ts)
	}
	return s, nil
}

func (a *levelxAgent) FirstTimestamp() (int64, bool) {
	return frameToMS(a.firstFrame, a.frameRate), len(a.states) > 0
}

func (a *levelxAgent) Attribute(name string) (any, bool) {
	v, ok := a.attrs[name]
	return v, ok
}
