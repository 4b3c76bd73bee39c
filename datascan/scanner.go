// Package datascan discovers map files and dataset recordings under the
// data directory for the file listing endpoint.
package datascan

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MapFile is one .osm file.
type MapFile struct {
	ID   string `json:"id"`
	Path string `json:"path"`
	Name string `json:"name"`
}

// DatasetFile is one recording within a dataset folder.
type DatasetFile struct {
	FileID       int     `json:"file_id"`
	DatasetPath  string  `json:"dataset_path"`
	PreviewImage *string `json:"preview_image"`
	HasTracks    bool    `json:"has_tracks"`
	HasMeta      bool    `json:"has_meta"`
}

// Layout names the directories the scanner looks in, relative to the data dir.
type Layout struct {
	MapDir string
	// DatasetDir returns the folder holding recordings of kind.
	DatasetDir func(kind string) string
}

// DefaultLayout is highD_map/*.osm for maps, LevelX/<kind>/data for LevelX
// recordings and gtfsrt/ for GTFS-RT recordings.
func DefaultLayout() Layout {
	return Layout{
		MapDir: "highD_map",
		DatasetDir: func(kind string) string {
			if strings.EqualFold(kind, "gtfsrt") {
				return "gtfsrt"
			}
			k := kind
			if !strings.EqualFold(kind, "highD") {
				k = strings.ToLower(kind)
			}
			return filepath.Join("LevelX", k, "data")
		},
	}
}

// Scanner caches scan results until Refresh.
type Scanner struct {
	dataDir string
	layout  Layout
	logger  *slog.Logger

	mu       sync.Mutex
	maps     []MapFile
	datasets map[string][]DatasetFile
}

func NewScanner(dataDir string, layout Layout, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{dataDir: dataDir, layout: layout, logger: logger, datasets: map[string][]DatasetFile{}}
}

// Refresh drops cached results.
func (s *Scanner) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maps = nil
	s.datasets = map[string][]DatasetFile{}
}

// Maps lists .osm files sorted by id.
func (s *Scanner) Maps() []MapFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maps != nil {
		return s.maps
	}
	dir := filepath.Join(s.dataDir, s.layout.MapDir)
	matches, err := filepath.Glob(filepath.Join(dir, "*.osm"))
	if err != nil || len(matches) == 0 {
		s.logger.Warn("no map files found", "dir", dir)
		return []MapFile{}
	}
	out := make([]MapFile, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), filepath.Ext(m))
		abs, _ := filepath.Abs(m)
		out = append(out, MapFile{ID: id, Path: abs, Name: displayName(id)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	s.maps = out
	return out
}

// Datasets lists recordings of kind sorted by file id.
func (s *Scanner) Datasets(kind string) []DatasetFile {
	key := strings.ToLower(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.datasets[key]; ok {
		return cached
	}
	dir := filepath.Join(s.dataDir, s.layout.DatasetDir(kind))
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("dataset directory missing", "kind", kind, "dir", dir)
		return []DatasetFile{}
	}
	abs, _ := filepath.Abs(dir)

	seen := map[int]bool{}
	out := []DatasetFile{}
	for _, e := range entries {
		name := e.Name()
		var suffix string
		switch {
		case strings.HasSuffix(name, "_tracks.csv"):
			suffix = "_tracks.csv"
		case strings.HasSuffix(name, "_vehicle_positions.pbs"):
			suffix = "_vehicle_positions.pbs"
		default:
			continue
		}
		prefix := strings.TrimSuffix(name, suffix)
		id, err := strconv.Atoi(prefix)
		if err != nil {
			s.logger.Warn("skipping recording with non-numeric id", "file", name)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		df := DatasetFile{FileID: id, DatasetPath: abs, HasTracks: true}
		if suffix == "_tracks.csv" {
			df.HasMeta = exists(filepath.Join(dir, prefix+"_tracksMeta.csv")) &&
				exists(filepath.Join(dir, prefix+"_recordingMeta.csv"))
			if img := filepath.Join(abs, prefix+"_highway.png"); exists(img) {
				df.PreviewImage = &img
			}
		}
		out = append(out, df)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileID < out[j].FileID })
	s.datasets[key] = out
	s.logger.Info("dataset files scanned", "kind", kind, "count", len(out))
	return out
}

// PreviewImage returns the preview image of a LevelX recording, if present.
func (s *Scanner) PreviewImage(kind string, fileID int) (string, bool) {
	p := filepath.Join(s.dataDir, s.layout.DatasetDir(kind), twoDigits(fileID)+"_highway.png")
	if !exists(p) {
		return "", false
	}
	abs, _ := filepath.Abs(p)
	return abs, true
}

func twoDigits(n int) string {
	if n >= 0 && n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func displayName(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
