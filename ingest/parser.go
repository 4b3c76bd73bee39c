package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

var (
	// ErrDatasetNotFound means the dataset folder or its primary file is absent.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrUnsupportedDataset is returned for a dataset kind no parser handles.
	ErrUnsupportedDataset = errors.New("unsupported dataset kind")
)

// LevelX dataset kinds.
const (
	KindHighD = "highD"
	KindInD   = "inD"
	KindRounD = "rounD"
	KindExiD  = "exiD"
	KindUniD  = "uniD"
	// KindGTFSRT is a recorded GTFS-Realtime vehicle positions feed.
	KindGTFSRT = "gtfsrt"
)

// Result is the outcome of one parse.
type Result struct {
	// Agents are sorted by ID.
	Agents []trajectory.Handle
	// Range is the actual [start, end) span covered, after clipping to the
	// requested window.
	Range trajectory.TimeRange
}

// Parser reads one dataset family.
type Parser interface {
	ParseTrajectories(ctx context.Context, kind string, fileID int, folder string, window *trajectory.TimeRange) (Result, error)
	// LoadClassMap returns the authoritative id->class table. An empty map
	// is a valid answer.
	LoadClassMap(kind string, folder string, fileID int) (trajectory.ClassMap, error)
}

// Dispatcher routes a dataset kind to its parser.
type Dispatcher struct {
	parsers map[string]Parser
	kinds   []string
}

// NewDispatcher registers the LevelX kinds and the GTFS-RT recording kind.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{parsers: map[string]Parser{}}
	lx := NewLevelXParser(logger)
	for _, k := range []string{KindHighD, KindInD, KindRounD, KindExiD, KindUniD} {
		d.Register(k, lx)
	}
	d.Register(KindGTFSRT, NewGTFSRTParser(logger))
	return d
}

// Register binds kind (case-insensitive) to p, replacing any earlier binding.
func (d *Dispatcher) Register(kind string, p Parser) {
	key := strings.ToLower(kind)
	if _, ok := d.parsers[key]; !ok {
		d.kinds = append(d.kinds, kind)
	}
	d.parsers[key] = p
}

// Kinds lists the registered dataset kinds in registration order.
func (d *Dispatcher) Kinds() []string {
	return append([]string(nil), d.kinds...)
}

// Supports reports whether kind has a parser.
func (d *Dispatcher) Supports(kind string) bool {
	_, ok := d.parsers[strings.ToLower(kind)]
	return ok
}

func (d *Dispatcher) parser(kind string) (Parser, error) {
	p, ok := d.parsers[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDataset, kind)
	}
	return p, nil
}

func (d *Dispatcher) ParseTrajectories(ctx context.Context, kind string, fileID int, folder string, window *trajectory.TimeRange) (Result, error) {
	p, err := d.parser(kind)
	if err != nil {
		return Result{}, err
	}
	return p.ParseTrajectories(ctx, kind, fileID, folder, window)
}

func (d *Dispatcher) LoadClassMap(kind string, folder string, fileID int) (trajectory.ClassMap, error) {
	p, err := d.parser(kind)
	if err != nil {
		return nil, err
	}
	return p.LoadClassMap(kind, folder, fileID)
}

func sortHandles(hs []trajectory.Handle) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].ID < hs[j].ID })
}

// clipRange intersects the recording span with an optional window.
func clipRange(actual trajectory.TimeRange, window *trajectory.TimeRange) trajectory.TimeRange {
	if window == nil {
		return actual
	}
	return actual.Clip(*window)
}
