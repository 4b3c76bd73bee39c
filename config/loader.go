package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SearchPaths are tried in order when no explicit path is given.
var SearchPaths = []string{"config.yml", "./config/config.yml"}

// Default returns the built-in configuration.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:              8000,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Data: DataConfig{
			Dir:            "data",
			SupportedKinds: []string{"highD", "inD", "rounD", "exiD", "uniD", "gtfsrt"},
		},
		Simulation: SimulationConfig{
			BaseIntervalMS:      40,
			DefaultFPS:          25,
			MaxFPS:              60,
			DefaultFrameStep:    1,
			MaxConcurrentParses: 2,
			Pacing:              "sleep",
		},
		WebSocket: WebSocketConfig{
			MaxConnections: 100,
			PingInterval:   30 * time.Second,
			WriteTimeout:   10 * time.Second,
			ReadLimit:      64 * 1024,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads and validates the configuration. An explicit path must exist.
// Without one, SearchPaths are tried and Default() is used when none exists.
func Load(path string) (AppConfig, error) {
	data, err := read(path)
	if err != nil {
		return AppConfig{}, err
	}
	cfg := Default()
	if data != nil {
		var fromFile AppConfig
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return AppConfig{}, fmt.Errorf("parse config: %w", err)
		}
		cfg = fromFile
		backfill(&cfg)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func read(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return data, nil
	}
	for _, p := range SearchPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
	}
	return nil, nil
}

// backfill replaces zero values with defaults.
func backfill(c *AppConfig) {
	d := Default()
	s := &c.Server
	if s.Port == 0 {
		s.Port = d.Server.Port
	}
	setDur(&s.ReadHeaderTimeout, d.Server.ReadHeaderTimeout)
	setDur(&s.ReadTimeout, d.Server.ReadTimeout)
	setDur(&s.WriteTimeout, d.Server.WriteTimeout)
	setDur(&s.IdleTimeout, d.Server.IdleTimeout)
	setDur(&s.ShutdownTimeout, d.Server.ShutdownTimeout)

	if c.Data.Dir == "" {
		c.Data.Dir = d.Data.Dir
	}
	if len(c.Data.SupportedKinds) == 0 {
		c.Data.SupportedKinds = d.Data.SupportedKinds
	}

	sim := &c.Simulation
	if sim.BaseIntervalMS == 0 {
		sim.BaseIntervalMS = d.Simulation.BaseIntervalMS
	}
	if sim.DefaultFPS == 0 {
		sim.DefaultFPS = d.Simulation.DefaultFPS
	}
	if sim.MaxFPS == 0 {
		sim.MaxFPS = d.Simulation.MaxFPS
	}
	if sim.DefaultFrameStep == 0 {
		sim.DefaultFrameStep = d.Simulation.DefaultFrameStep
	}
	if sim.MaxConcurrentParses == 0 {
		sim.MaxConcurrentParses = d.Simulation.MaxConcurrentParses
	}
	if sim.Pacing == "" {
		sim.Pacing = d.Simulation.Pacing
	}

	ws := &c.WebSocket
	if ws.MaxConnections == 0 {
		ws.MaxConnections = d.WebSocket.MaxConnections
	}
	setDur(&ws.PingInterval, d.WebSocket.PingInterval)
	setDur(&ws.WriteTimeout, d.WebSocket.WriteTimeout)
	if ws.ReadLimit == 0 {
		ws.ReadLimit = d.WebSocket.ReadLimit
	}

	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
}

func setDur(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}
