package trajectory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/trajectory-replay/internal/testutil"
	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

func resolverFor(t *testing.T, classes trajectory.ClassMap) *trajectory.Resolver {
	t.Helper()
	rep := &testutil.LinearAgent{From: 0, To: 40}
	acc, err := trajectory.Detect(trajectory.Handle{ID: 0, Object: rep})
	require.NoError(t, err)
	return trajectory.NewResolver(acc, classes)
}

func TestResolve_ClassOrder(t *testing.T) {
	tests := []struct {
		name    string
		classes trajectory.ClassMap
		attrs   map[string]any
		want    trajectory.Class
	}{
		{
			name:    "side table wins over fields",
			classes: trajectory.ClassMap{1: "Truck"},
			attrs:   map[string]any{"class": "Car", "type": "car"},
			want:    trajectory.ClassHeavy,
		},
		{
			name:  "class field before type field",
			attrs: map[string]any{"class": "bus", "type": "car"},
			want:  trajectory.ClassHeavy,
		},
		{
			name:  "type field when class absent",
			attrs: map[string]any{"type": "truck"},
			want:  trajectory.ClassHeavy,
		},
		{
			name:    "blank side table entry falls through",
			classes: trajectory.ClassMap{1: "  "},
			attrs:   map[string]any{"type": "Truck"},
			want:    trajectory.ClassHeavy,
		},
		{
			name: "default when nothing present",
			want: trajectory.ClassStandard,
		},
		{
			name:    "unknown label coerced to standard",
			classes: trajectory.ClassMap{1: "hovercraft"},
			attrs:   map[string]any{"type": "truck"},
			want:    trajectory.ClassStandard,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolverFor(t, tt.classes)
			agent := &testutil.LinearAgent{Attrs: tt.attrs}
			info := r.Resolve(trajectory.Handle{ID: 1, Object: agent})
			assert.Equal(t, tt.want, info.Class)
			assert.Equal(t, 1, info.ID)
		})
	}
}

func TestResolve_Footprint(t *testing.T) {
	tests := []struct {
		name       string
		attrs      map[string]any
		wantLength float64
		wantWidth  float64
	}{
		{
			name:       "length and width fields",
			attrs:      map[string]any{"length": 12.5, "width": 2.5},
			wantLength: 12.5,
			wantWidth:  2.5,
		},
		{
			name:       "width and height inference takes max as length",
			attrs:      map[string]any{"width": "4.04", "height": 1.82},
			wantLength: 4.04,
			wantWidth:  1.82,
		},
		{
			name:       "inference requires both positive",
			attrs:      map[string]any{"width": 4.0, "height": 0.0},
			wantLength: trajectory.DefaultLength,
			wantWidth:  trajectory.DefaultWidth,
		},
		{
			name:       "negative length replaced by default",
			attrs:      map[string]any{"length": -3.0, "width": 1.9},
			wantLength: trajectory.DefaultLength,
			wantWidth:  1.9,
		},
		{
			name:       "values below floors replaced",
			attrs:      map[string]any{"length": 0.9, "width": 0.4},
			wantLength: trajectory.DefaultLength,
			wantWidth:  trajectory.DefaultWidth,
		},
		{
			name:       "unparseable values use defaults",
			attrs:      map[string]any{"length": "n/a", "width": []int{1}},
			wantLength: trajectory.DefaultLength,
			wantWidth:  trajectory.DefaultWidth,
		},
		{
			name:       "nothing present",
			wantLength: trajectory.DefaultLength,
			wantWidth:  trajectory.DefaultWidth,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := resolverFor(t, nil)
			info := r.Resolve(trajectory.Handle{ID: 9, Object: &testutil.LinearAgent{Attrs: tt.attrs}})
			assert.Equal(t, tt.wantLength, info.Length)
			assert.Equal(t, tt.wantWidth, info.Width)
			assert.GreaterOrEqual(t, info.Length, trajectory.MinLength)
			assert.GreaterOrEqual(t, info.Width, trajectory.MinWidth)
		})
	}
}

func TestResolve_AgentWithoutAttributes(t *testing.T) {
	rep := &testutil.ActivityOnlyAgent{}
	acc, err := trajectory.Detect(trajectory.Handle{ID: 0, Object: &testutil.LinearAgent{}})
	require.NoError(t, err)
	info := trajectory.NewResolver(acc, nil).Resolve(trajectory.Handle{ID: 2, Object: rep})
	assert.Equal(t, trajectory.ClassStandard, info.Class)
	assert.Equal(t, trajectory.DefaultLength, info.Length)
	assert.Equal(t, trajectory.DefaultWidth, info.Width)
}

func TestFirstOf(t *testing.T) {
	calls := 0
	miss := func() (int, bool) { calls++; return 0, false }
	hit := func() (int, bool) { calls++; return 7, true }
	never := func() (int, bool) { t.Fatal("step after first success must not run"); return 0, false }

	v, ok := trajectory.FirstOf[int](miss, hit, never)()
	require.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)

	_, ok = trajectory.FirstOf[int](miss)()
	assert.False(t, ok)
}

func TestParseClass(t *testing.T) {
	c, ok := trajectory.ParseClass(" TRUCK ")
	assert.True(t, ok)
	assert.Equal(t, trajectory.ClassHeavy, c)

	c, ok = trajectory.ParseClass("pedestrian")
	assert.False(t, ok)
	assert.Equal(t, trajectory.ClassStandard, c)
}
