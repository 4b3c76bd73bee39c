package mapdata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/theoremus-urban-solutions/trajectory-replay/internal/geo"
)

// ErrMapNotFound means the map file does not exist.
var ErrMapNotFound = errors.New("map file not found")

// Polyline kinds.
const (
	KindLane     = "lane"
	KindBoundary = "boundary"
)

// Polyline is one way in local metres.
type Polyline struct {
	ID      string       `json:"id"`
	Kind    string       `json:"type"`
	Subtype string       `json:"subtype,omitempty"`
	Dashed  bool         `json:"dashed"`
	Points  [][2]float64 `json:"points"`
}

// Bounds is the axis-aligned extent of all polylines.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

type Metadata struct {
	NumLanes      int     `json:"num_lanes"`
	NumBoundaries int     `json:"num_boundaries"`
	HasGeometry   bool    `json:"has_geometry"`
	Bounds        *Bounds `json:"bounds,omitempty"`
}

// MapData is immutable once returned by Parse or the Cache.
type MapData struct {
	Lanes      []Polyline `json:"lanes"`
	Boundaries []Polyline `json:"boundaries"`
	Metadata   Metadata   `json:"metadata"`
}

// Empty returns map data with no geometry.
func Empty() *MapData {
	return &MapData{Lanes: []Polyline{}, Boundaries: []Polyline{}}
}

type osmTag struct {
	K string `xml:"k,attr"`
	V string `xml:"v,attr"`
}

type osmNode struct {
	ID   int64    `xml:"id,attr"`
	Lat  float64  `xml:"lat,attr"`
	Lon  float64  `xml:"lon,attr"`
	Tags []osmTag `xml:"tag"`
}

type osmWay struct {
	ID   int64 `xml:"id,attr"`
	Refs []struct {
		Ref int64 `xml:"ref,attr"`
	} `xml:"nd"`
	Tags []osmTag `xml:"tag"`
}

type osmDoc struct {
	Nodes []osmNode `xml:"node"`
	Ways  []osmWay  `xml:"way"`
}

func tagValue(tags []osmTag, key string) (string, bool) {
	for _, t := range tags {
		if t.K == key {
			return t.V, true
		}
	}
	return "", false
}

// ParseFile reads and parses an .osm file.
func ParseFile(path string) (*MapData, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	md, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return md, nil
}

// Parse decodes OSM XML. Nodes carrying local_x/local_y tags use them
// directly; other nodes are projected around the first node.
func Parse(r io.Reader) (*MapData, error) {
	var doc osmDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	coords := make(map[int64][2]float64, len(doc.Nodes))
	var proj *geo.Projector
	for _, n := range doc.Nodes {
		lx, okX := tagValue(n.Tags, "local_x")
		ly, okY := tagValue(n.Tags, "local_y")
		if okX && okY {
			x, errX := strconv.ParseFloat(lx, 64)
			y, errY := strconv.ParseFloat(ly, 64)
			if errX == nil && errY == nil {
				coords[n.ID] = [2]float64{x, y}
				continue
			}
		}
		if proj == nil {
			p := geo.NewProjector(n.Lat, n.Lon)
			proj = &p
		}
		x, y := proj.Project(n.Lat, n.Lon)
		coords[n.ID] = [2]float64{x, y}
	}

	md := Empty()
	ways := append([]osmWay(nil), doc.Ways...)
	sort.Slice(ways, func(i, j int) bool { return ways[i].ID < ways[j].ID })
	for _, w := range ways {
		pts := make([][2]float64, 0, len(w.Refs))
		for _, nd := range w.Refs {
			if c, ok := coords[nd.Ref]; ok {
				pts = append(pts, c)
			}
		}
		if len(pts) < 2 {
			continue
		}
		typ, _ := tagValue(w.Tags, "type")
		sub, _ := tagValue(w.Tags, "subtype")
		_, isHighway := tagValue(w.Tags, "highway")
		pl := Polyline{
			ID:      strconv.FormatInt(w.ID, 10),
			Subtype: sub,
			Dashed:  strings.EqualFold(sub, "dashed"),
			Points:  pts,
		}
		if isHighway || isLaneLike(typ) || isLaneLike(sub) {
			pl.Kind = KindLane
			md.Lanes = append(md.Lanes, pl)
		} else {
			pl.Kind = KindBoundary
			md.Boundaries = append(md.Boundaries, pl)
		}
	}

	md.Metadata = Metadata{
		NumLanes:      len(md.Lanes),
		NumBoundaries: len(md.Boundaries),
		HasGeometry:   len(md.Lanes)+len(md.Boundaries) > 0,
		Bounds:        bounds(md),
	}
	return md, nil
}

func isLaneLike(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range []string{"lane", "road", "highway", "motorway"} {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func bounds(md *MapData) *Bounds {
	b := Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	seen := false
	for _, set := range [][]Polyline{md.Lanes, md.Boundaries} {
		for _, pl := range set {
			for _, p := range pl.Points {
				seen = true
				b.MinX, b.MaxX = math.Min(b.MinX, p[0]), math.Max(b.MaxX, p[0])
				b.MinY, b.MaxY = math.Min(b.MinY, p[1]), math.Max(b.MaxY, p[1])
			}
		}
	}
	if !seen {
		return nil
	}
	return &b
}
