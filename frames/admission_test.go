package frames_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/trajectory-replay/frames"
	"github.com/theoremus-urban-solutions/trajectory-replay/internal/testutil"
	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

func TestAdmission(t *testing.T) {
	a := frames.NewAdmission(frames.Point{}, 5)
	assert.True(t, a.Enabled())
	assert.True(t, a.Admit(3, 4))
	assert.False(t, a.Admit(3, 4.001))

	off := frames.NewAdmission(frames.Point{X: 1}, 0)
	assert.False(t, off.Enabled())
	assert.True(t, off.Admit(1e9, 1e9))
	_, ok := off.Reference()
	assert.False(t, ok)
}

func TestCentroid(t *testing.T) {
	c, ok := frames.Centroid([]frames.Point{{X: 1, Y: 1}, {X: 3, Y: -1}})
	require.True(t, ok)
	assert.Equal(t, frames.Point{X: 2, Y: 0}, c)

	_, ok = frames.Centroid(nil)
	assert.False(t, ok)
}

func TestBuild_AdmissionPerFrame(t *testing.T) {
	agents := []trajectory.Handle{
		{ID: 1, Object: &testutil.LinearAgent{From: 0, To: 200}},
		{ID: 2, Object: &testutil.LinearAgent{From: 0, To: 200, X0: 3, Y0: 4}},
		{ID: 3, Object: &testutil.LinearAgent{From: 0, To: 200, X0: -3, Y0: -4}},
		// leaves the radius between 40 and 80 ms
		{ID: 4, Object: &testutil.LinearAgent{From: 0, To: 200, VX: 100}},
		// never admitted, and not active at the first timestamp
		{ID: 5, Object: &testutil.LinearAgent{From: 40, To: 200, X0: 100}},
	}
	table, err := buildTable(t, agents, frames.Options{Range: trajectory.TimeRange{Start: 0, End: 200}, FrameStep: 1, Radius: 5})
	require.NoError(t, err)
	require.Equal(t, 5, table.TotalFrames)
	require.NotNil(t, table.FilterReference)
	assert.Equal(t, frames.Point{}, *table.FilterReference)
	assert.Equal(t, 5, table.ParticipantCount)

	want := [][]int{{1, 2, 3, 4}, {1, 2, 3, 4}, {1, 2, 3}, {1, 2, 3}, {1, 2, 3}}
	for i, f := range table.Frames {
		assert.Equal(t, want[i], agentIDs(f), "frame %d", i)
	}
}

func TestBuild_AdmissionDisabledWhenNobodyActiveAtStart(t *testing.T) {
	agents := []trajectory.Handle{
		{ID: 1, Object: &testutil.LinearAgent{From: 40, To: 120}},
		{ID: 2, Object: &testutil.LinearAgent{From: 40, To: 120, X0: 1000}},
	}
	table, err := buildTable(t, agents, frames.Options{Range: trajectory.TimeRange{Start: 0, End: 120}, FrameStep: 1, Radius: 5})
	require.NoError(t, err)
	assert.Nil(t, table.FilterReference)
	assert.Empty(t, table.Frames[0].Agents)
	assert.Equal(t, []int{1, 2}, agentIDs(table.Frames[1]))
}
