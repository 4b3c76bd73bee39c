package gtfsrt

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"

	"github.com/theoremus-urban-solutions/trajectory-replay/ingest"
	"github.com/theoremus-urban-solutions/trajectory-replay/trajectory"
)

func feed(ts uint64, lon float32) []byte {
	fm := &gtfsrtpb.FeedMessage{
		Header: &gtfsrtpb.FeedHeader{GtfsRealtimeVersion: proto.String("2.0"), Timestamp: proto.Uint64(ts)},
		Entity: []*gtfsrtpb.FeedEntity{
			{
				Id: proto.String("v1"),
				Vehicle: &gtfsrtpb.VehiclePosition{
					Vehicle:  &gtfsrtpb.VehicleDescriptor{Id: proto.String("bus-7")},
					Position: &gtfsrtpb.Position{Latitude: proto.Float32(42.69), Longitude: proto.Float32(lon), Speed: proto.Float32(8)},
				},
			},
			{
				Id:         proto.String("t1"),
				TripUpdate: &gtfsrtpb.TripUpdate{Trip: &gtfsrtpb.TripDescriptor{TripId: proto.String("trip-1")}},
			},
		},
	}
	b, _ := proto.Marshal(fm)
	return b
}

// feedServer advances the header timestamp every second request.
func feedServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := hits.Add(1) - 1
		step := uint64(n / 2)
		_, _ = w.Write(feed(1700000000+step, 23.32+float32(step)*0.0001))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRecorder_RecordsDistinctSnapshots(t *testing.T) {
	srv, hits := feedServer(t)
	rec := NewRecorder(NewFetcher(time.Second), srv.URL, 2*time.Millisecond, nil)

	var buf bytes.Buffer
	n, err := rec.Run(context.Background(), &buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int32(5), hits.Load())

	r := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	var stamps []uint64
	for {
		var fm gtfsrtpb.FeedMessage
		err := protodelim.UnmarshalFrom(r, &fm)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		require.Len(t, fm.GetEntity(), 1)
		assert.NotNil(t, fm.GetEntity()[0].GetVehicle())
		stamps = append(stamps, fm.GetHeader().GetTimestamp())
	}
	assert.Equal(t, []uint64{1700000000, 1700000001, 1700000002}, stamps)
}

func TestRecorder_ReplaysThroughIngest(t *testing.T) {
	srv, _ := feedServer(t)
	rec := NewRecorder(NewFetcher(time.Second), srv.URL, time.Millisecond, nil)

	dir := t.TempDir()
	f, err := os.Create(ingest.VehiclePositionsFile(dir, 4))
	require.NoError(t, err)
	_, err = rec.Run(context.Background(), f, 3)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res, err := ingest.NewGTFSRTParser(nil).ParseTrajectories(context.Background(), ingest.KindGTFSRT, 4, dir, nil)
	require.NoError(t, err)
	require.Len(t, res.Agents, 1)
	assert.Equal(t, trajectory.TimeRange{Start: 0, End: 2001}, res.Range)
}

func TestRecorder_StopsOnCancel(t *testing.T) {
	rec := NewRecorder(NewFetcher(time.Second), filepath.Join(t.TempDir(), "missing.pb"), time.Millisecond, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var buf bytes.Buffer
	n, err := rec.Run(ctx, &buf, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}

func TestFetcher_LocalFileAndStatus(t *testing.T) {
	p := filepath.Join(t.TempDir(), "vp.pb")
	require.NoError(t, os.WriteFile(p, feed(1, 23), 0o644))
	b, err := NewFetcher(time.Second).Fetch(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, feed(1, 23), b)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	_, err = NewFetcher(time.Second).Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "HTTP 502")
}
