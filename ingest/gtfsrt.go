package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protodelim"

	"github.com/theoremus-urban-solutions/trajectory-replay/internal/geo"
	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

// GTFSRTVehicleType is reported as the "type" attribute of every GTFS-RT
// agent; transit vehicles resolve to the heavy class.
const GTFSRTVehicleType = "bus"

// GTFSRTParser reads a recording of VehiclePositions feed snapshots.
type GTFSRTParser struct {
	logger *slog.Logger
}

func NewGTFSRTParser(logger *slog.Logger) *GTFSRTParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &GTFSRTParser{logger: logger}
}

// VehiclePositionsFile is the recording path for fileID within folder.
func VehiclePositionsFile(folder string, fileID int) string {
	return filepath.Join(folder, fmt.Sprintf("%02d_vehicle_positions.pbs", fileID))
}

type observation struct {
	ts       int64 // ms since epoch
	lat, lon float64
	bearing  float64
	speed    float64
}

func (p *GTFSRTParser) ParseTrajectories(ctx context.Context, kind string, fileID int, folder string, window *trajectory.TimeRange) (Result, error) {
	path := VehiclePositionsFile(folder, fileID)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
	}
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	byVehicle := map[string][]observation{}
	snapshots := 0
	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		var fm gtfsrtpb.FeedMessage
		err := protodelim.UnmarshalFrom(r, &fm)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("%s snapshot %d: %w", filepath.Base(path), snapshots, err)
		}
		snapshots++
		collectObservations(&fm, byVehicle)
	}
	if len(byVehicle) == 0 {
		return Result{}, nil
	}

	keys := make([]string, 0, len(byVehicle))
	var origin *observation
	for k, obs := range byVehicle {
		keys = append(keys, k)
		sort.Slice(obs, func(i, j int) bool { return obs[i].ts < obs[j].ts })
		if origin == nil || obs[0].ts < origin.ts {
			o := obs[0]
			origin = &o
		}
	}
	sort.Strings(keys)

	proj := geo.NewProjector(origin.lat, origin.lon)
	actual := trajectory.TimeRange{Start: 0}
	agents := make([]*gtfsrtAgent, 0, len(keys))
	for _, k := range keys {
		a := newGTFSRTAgent(k, byVehicle[k], origin.ts, proj)
		actual.End = max(actual.End, a.samples[len(a.samples)-1].ts+1)
		agents = append(agents, a)
	}
	span := clipRange(actual, window)

	res := Result{Range: span, Agents: make([]trajectory.Handle, 0, len(agents))}
	for i, a := range agents {
		if a.samples[len(a.samples)-1].ts < span.Start || a.samples[0].ts >= span.End {
			continue
		}
		res.Agents = append(res.Agents, trajectory.Handle{ID: i + 1, Object: a})
	}

	p.logger.Info("gtfs-rt recording parsed",
		"file_id", fileID, "snapshots", snapshots, "vehicles", len(keys),
		"agents", len(res.Agents), "range", span.String())
	return res, nil
}

// LoadClassMap returns an empty map: GTFS-RT carries no class side-table.
func (p *GTFSRTParser) LoadClassMap(string, string, int) (trajectory.ClassMap, error) {
	return trajectory.ClassMap{}, nil
}

func collectObservations(fm *gtfsrtpb.FeedMessage, into map[string][]observation) {
	headerTS := int64(fm.GetHeader().GetTimestamp())
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}
		key := vp.GetVehicle().GetId()
		if key == "" {
			key = e.GetId()
		}
		if key == "" {
			continue
		}
		ts := int64(vp.GetTimestamp())
		if ts == 0 {
			ts = headerTS
		}
		pos := vp.GetPosition()
		into[key] = append(into[key], observation{
			ts:      ts * 1000,
			lat:     float64(pos.GetLatitude()),
			lon:     float64(pos.GetLongitude()),
			bearing: float64(pos.GetBearing()),
			speed:   float64(pos.GetSpeed()),
		})
	}
}

type gtfsrtSample struct {
	ts                    int64
	x, y, vx, vy, heading float64
}

// gtfsrtAgent holds the last reported position until the next report.
type gtfsrtAgent struct {
	vehicleID string
	samples   []gtfsrtSample
}

func newGTFSRTAgent(vehicleID string, obs []observation, epoch int64, proj geo.Projector) *gtfsrtAgent {
	a := &gtfsrtAgent{vehicleID: vehicleID, samples: make([]gtfsrtSample, 0, len(obs))}
	for _, o := range obs {
		ts := o.ts - epoch
		if n := len(a.samples); n > 0 && a.samples[n-1].ts == ts {
			continue
		}
		x, y := proj.Project(o.lat, o.lon)
		h := geo.BearingToHeading(o.bearing)
		a.samples = append(a.samples, gtfsrtSample{
			ts:      ts,
			x:       x,
			y:       y,
			vx:      o.speed * math.Cos(h),
			vy:      o.speed * math.Sin(h),
			heading: h,
		})
	}
	return a
}

func (a *gtfsrtAgent) at(ts int64) (gtfsrtSample, bool) {
	n := len(a.samples)
	if n == 0 || ts < a.samples[0].ts || ts > a.samples[n-1].ts {
		return gtfsrtSample{}, false
	}
	i := sort.Search(n, func(i int) bool { return a.samples[i].ts > ts })
	return a.samples[i-1], true
}

func (a *gtfsrtAgent) IsActive(ts int64) bool {
	_, ok := a.at(ts)
	return ok
}

// State uses the alternate field names and reports nil outside the
// observed span.
func (a *gtfsrtAgent) State(ts int64) (any, error) {
	s, ok := a.at(ts)
	if !ok {
		return nil, nil
	}
	return map[string]float64{
		"position_x":  s.x,
		"position_y":  s.y,
		"velocity_x":  s.vx,
		"velocity_y":  s.vy,
		"orientation": s.heading,
	}, nil
}

func (a *gtfsrtAgent) FirstTimestamp() (int64, bool) {
	if len(a.samples) == 0 {
		return 0, false
	}
	return a.samples[0].ts, true
}

func (a *gtfsrtAgent) Attribute(name string) (any, bool) {
	switch name {
	case trajectory.AttrType:
		return GTFSRTVehicleType, true
	case "vehicle_id":
		return a.vehicleID, true
	}
	return nil, false
}
