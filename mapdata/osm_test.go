package mapdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const laneletOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="0" lon="0"><tag k="local_x" v="0"/><tag k="local_y" v="0"/></node>
  <node id="2" lat="0" lon="0"><tag k="local_x" v="100"/><tag k="local_y" v="0"/></node>
  <node id="3" lat="0" lon="0"><tag k="local_x" v="0"/><tag k="local_y" v="-3.5"/></node>
  <node id="4" lat="0" lon="0"><tag k="local_x" v="100"/><tag k="local_y" v="-3.5"/></node>
  <way id="20"><nd ref="3"/><nd ref="4"/><tag k="type" v="line_thin"/><tag k="subtype" v="dashed"/></way>
  <way id="10"><nd ref="1"/><nd ref="2"/><tag k="type" v="road_border"/></way>
  <way id="30"><nd ref="1"/><tag k="type" v="line_thin"/></way>
</osm>`

func TestParse_LocalCoordinates(t *testing.T) {
	md, err := Parse(strings.NewReader(laneletOSM))
	require.NoError(t, err)

	require.Len(t, md.Lanes, 1)
	assert.Equal(t, "10", md.Lanes[0].ID)
	assert.Equal(t, KindLane, md.Lanes[0].Kind)
	assert.Equal(t, [][2]float64{{0, 0}, {100, 0}}, md.Lanes[0].Points)

	require.Len(t, md.Boundaries, 1)
	assert.Equal(t, "20", md.Boundaries[0].ID)
	assert.True(t, md.Boundaries[0].Dashed)

	assert.Equal(t, 1, md.Metadata.NumLanes)
	assert.Equal(t, 1, md.Metadata.NumBoundaries)
	assert.True(t, md.Metadata.HasGeometry)
	assert.Equal(t, &Bounds{MinX: 0, MinY: -3.5, MaxX: 100, MaxY: 0}, md.Metadata.Bounds)
}

func TestParse_ProjectsLatLon(t *testing.T) {
	doc := `<osm>
  <node id="1" lat="50.78" lon="6.08"/>
  <node id="2" lat="50.78" lon="6.081"/>
  <way id="5"><nd ref="1"/><nd ref="2"/><tag k="highway" v="motorway"/></way>
</osm>`
	md, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, md.Lanes, 1)
	pts := md.Lanes[0].Points
	assert.Equal(t, [2]float64{0, 0}, pts[0])
	assert.InDelta(t, 70.4, pts[1][0], 0.5)
	assert.InDelta(t, 0, pts[1][1], 1e-9)
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "highD_1.osm")
	require.NoError(t, os.WriteFile(path, []byte(laneletOSM), 0o644))

	c := NewCache()
	first, err := c.Load(path)
	require.NoError(t, err)
	second, err := c.Load(filepath.Join(dir, ".", "highD_1.osm"))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.Len())

	empty, err := c.Load("")
	require.NoError(t, err)
	assert.False(t, empty.Metadata.HasGeometry)
	assert.NotNil(t, empty.Lanes)

	_, err = c.Load(filepath.Join(dir, "missing.osm"))
	assert.True(t, errors.Is(err, ErrMapNotFound))
	assert.Equal(t, 1, c.Len())
}
