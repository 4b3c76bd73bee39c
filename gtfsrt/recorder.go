package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/proto"
)

// Fetcher reads one feed snapshot from an HTTP(S) URL or a local file path.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch returns the raw protobuf bytes at urlOrPath.
func (f *Fetcher) Fetch(ctx context.Context, urlOrPath string) ([]byte, error) {
	if !strings.HasPrefix(urlOrPath, "http://") && !strings.HasPrefix(urlOrPath, "https://") {
		return os.ReadFile(urlOrPath)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlOrPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", urlOrPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, urlOrPath)
	}
	return io.ReadAll(resp.Body)
}

// Recorder polls a vehicle positions feed and appends each new snapshot.
type Recorder struct {
	fetcher  *Fetcher
	source   string
	interval time.Duration
	logger   *slog.Logger

	lastHeader uint64
}

func NewRecorder(fetcher *Fetcher, source string, interval time.Duration, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{fetcher: fetcher, source: source, interval: interval, logger: logger}
}

// Snapshot fetches the feed and strips it to vehicle position entities.
// ok is false when the feed timestamp has not moved since the last snapshot.
func (r *Recorder) Snapshot(ctx context.Context) (fm *gtfsrtpb.FeedMessage, ok bool, err error) {
	raw, err := r.fetcher.Fetch(ctx, r.source)
	if err != nil {
		return nil, false, err
	}
	var in gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(raw, &in); err != nil {
		return nil, false, fmt.Errorf("decode feed: %w", err)
	}
	ts := in.GetHeader().GetTimestamp()
	if ts != 0 && ts == r.lastHeader {
		return nil, false, nil
	}
	r.lastHeader = ts

	out := &gtfsrtpb.FeedMessage{Header: in.GetHeader()}
	for _, e := range in.GetEntity() {
		if e.GetVehicle().GetPosition() == nil {
			continue
		}
		out.Entity = append(out.Entity, &gtfsrtpb.FeedEntity{Id: e.Id, Vehicle: e.GetVehicle()})
	}
	return out, true, nil
}

// Run appends snapshots to w every interval until ctx is done or limit
// snapshots were written (limit <= 0 means no limit). Fetch failures are
// logged and retried on the next tick. It returns the number written.
func (r *Recorder) Run(ctx context.Context, w io.Writer, limit int) (int, error) {
	written := 0
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		fm, ok, err := r.Snapshot(ctx)
		switch {
		case err != nil:
			r.logger.Warn("feed snapshot failed", "source", r.source, "error", err)
		case ok:
			if _, err := protodelim.MarshalTo(w, fm); err != nil {
				return written, fmt.Errorf("write snapshot: %w", err)
			}
			written++
			r.logger.Debug("snapshot recorded", "vehicles", len(fm.GetEntity()), "header_ts", fm.GetHeader().GetTimestamp())
			if limit > 0 && written >= limit {
				return written, nil
			}
		}
		select {
		case <-ctx.Done():
			return written, nil
		case <-ticker.C:
		}
	}
}
