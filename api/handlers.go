package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theoremus-urban-solutions/trajectory-replay/datascan"
	"github.com/theoremus-urban-solutions/trajectory-replay/frames"
	"github.com/theoremus-urban-solutions/trajectory-replay/ingest"
	"github.com/theoremus-urban-solutions/trajectory-replay/mapdata"
	"github.com/theoremus-urban-solutions/trajectory-replay/session"
	"github.com/theoremus-urban-solutions/trajectory-replay/stream"
)

// SessionCreator is implemented by session.Creator.
type SessionCreator interface {
	Create(ctx context.Context, cfg session.Config) (*session.Session, error)
}

// Deps are the collaborators behind the routes. Scanner, WebSocket and
// Gatherer are optional; their routes are not mounted when nil.
type Deps struct {
	Creator   SessionCreator
	Sessions  *session.Registry
	Scanner   *datascan.Scanner
	WebSocket *stream.Handler
	Kinds     []string
	// Gatherer backs the metrics route at MetricsPath.
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Logger      *slog.Logger
}

type handlers struct {
	Deps
	started time.Time
}

// NewRouter mounts every route on a new ServeMux.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	h := &handlers{Deps: d, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/simulation/initialize", h.initialize)
	mux.HandleFunc("GET /api/simulation/session/{id}", h.sessionInfo)
	mux.HandleFunc("GET /api/status", h.status)
	mux.HandleFunc("GET /api/health", h.health)
	if d.Scanner != nil {
		mux.HandleFunc("GET /api/data/files", h.files)
		mux.HandleFunc("GET /api/data/preview/{kind}/{file_id}", h.preview)
	}
	if d.WebSocket != nil {
		mux.HandleFunc("GET /ws/stats", h.wsStats)
		mux.Handle("GET /ws/simulation", d.WebSocket)
	}
	if d.Gatherer != nil {
		path := d.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type initializeResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message"`
	SessionID string           `json:"session_id"`
	MapData   *mapdata.MapData `json:"map_data"`
	Config    session.Config   `json:"config"`
}

type sessionResponse struct {
	Success            bool                       `json:"success"`
	SessionID          string                     `json:"session_id"`
	MapData            *mapdata.MapData           `json:"map_data"`
	TrajectoryMetadata session.TrajectoryMetadata `json:"trajectory_metadata"`
	Config             session.Config             `json:"config"`
}

type statusResponse struct {
	Status            string   `json:"status"`
	Sessions          int      `json:"sessions"`
	ActiveConnections int      `json:"active_connections"`
	ActiveStreams     int64    `json:"active_streams"`
	SupportedDatasets []string `json:"supported_datasets"`
	UptimeSeconds     float64  `json:"uptime_seconds"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

type filesResponse struct {
	Maps     []datascan.MapFile                `json:"maps"`
	Datasets map[string][]datascan.DatasetFile `json:"datasets"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Success: false, Message: msg})
}

// statusFor maps a session creation error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidConfig), errors.Is(err, ingest.ErrUnsupportedDataset):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrDatasetNotFound), errors.Is(err, mapdata.ErrMapNotFound),
		errors.Is(err, frames.ErrEmptyResult):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (h *handlers) initialize(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s, err := h.Creator.Create(r.Context(), cfg)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.Logger.Error("session initialisation failed", "dataset", cfg.Dataset, "file_id", cfg.FileID, "error", err)
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, initializeResponse{
		Success:   true,
		Message:   "Simulation initialized",
		SessionID: s.ID,
		MapData:   s.MapData,
		Config:    s.Config,
	})
}

func (h *handlers) sessionInfo(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Lookup(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Success:            true,
		SessionID:          s.ID,
		MapData:            s.MapData,
		TrajectoryMetadata: s.Metadata(),
		Config:             s.Config,
	})
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Status:            "running",
		Sessions:          h.Sessions.Len(),
		SupportedDatasets: h.Kinds,
		UptimeSeconds:     time.Since(h.started).Seconds(),
	}
	if h.WebSocket != nil {
		st := h.WebSocket.Stats()
		resp.ActiveConnections = st.ActiveConnections
		resp.ActiveStreams = st.ActiveStreams
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: h.Sessions.Len()})
}

// supportedKind returns the configured spelling of kind, matched case-insensitively.
func (h *handlers) supportedKind(kind string) (string, bool) {
	for _, k := range h.Kinds {
		if strings.EqualFold(k, kind) {
			return k, true
		}
	}
	return "", false
}

func (h *handlers) files(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		h.Scanner.Refresh()
	}
	kinds := h.Kinds
	if want := r.URL.Query().Get("dataset_type"); want != "" {
		k, ok := h.supportedKind(want)
		if !ok {
			writeError(w, http.StatusBadRequest, "unsupported dataset_type: "+want)
			return
		}
		kinds = []string{k}
	}
	resp := filesResponse{Maps: h.Scanner.Maps(), Datasets: map[string][]datascan.DatasetFile{}}
	for _, k := range kinds {
		resp.Datasets[k] = h.Scanner.Datasets(k)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) wsStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.WebSocket.Stats())
}

func (h *handlers) preview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("file_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_id must be an integer")
		return
	}
	kind, ok := h.supportedKind(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported dataset kind: "+r.PathValue("kind"))
		return
	}
	p, ok := h.Scanner.PreviewImage(kind, id)
	if !ok {
		writeError(w, http.StatusNotFound, "no preview image")
		return
	}
	http.ServeFile(w, r, p)
}
