package config

import (
	"strconv"
	"time"
)

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout" validate:"gte=0"`
	ReadTimeout       time.Duration `yaml:"readTimeout" validate:"gte=0"`
	WriteTimeout      time.Duration `yaml:"writeTimeout" validate:"gte=0"`
	IdleTimeout       time.Duration `yaml:"idleTimeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout" validate:"gte=0"`
}

// DataConfig locates recordings and maps on disk
type DataConfig struct {
	Dir            string   `yaml:"dir"`
	SupportedKinds []string `yaml:"supportedKinds"`
}

// SimulationConfig bounds session creation and streaming
type SimulationConfig struct {
	BaseIntervalMS      int64  `yaml:"baseIntervalMS" validate:"gte=0"`
	DefaultFPS          int    `yaml:"defaultFPS" validate:"gte=0,lte=60"`
	MaxFPS              int    `yaml:"maxFPS" validate:"gte=0,lte=60"`
	DefaultFrameStep    int    `yaml:"defaultFrameStep" validate:"gte=0"`
	MaxDurationMS       int64  `yaml:"maxDurationMS" validate:"gte=0"`
	MaxConcurrentParses int    `yaml:"maxConcurrentParses" validate:"gte=0"`
	Pacing              string `yaml:"pacing" validate:"omitempty,oneof=sleep token_bucket"`
}

// WebSocketConfig contains streaming endpoint configuration
type WebSocketConfig struct {
	MaxConnections int           `yaml:"maxConnections" validate:"gte=0"`
	PingInterval   time.Duration `yaml:"pingInterval" validate:"gte=0"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" validate:"gte=0"`
	ReadLimit      int64         `yaml:"readLimit" validate:"gte=0"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

// LoggingConfig selects level and handler
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path" validate:"omitempty,startswith=/"`
}

// On reports whether metrics are enabled; unset means enabled.
func (m MetricsConfig) On() bool { return m.Enabled == nil || *m.Enabled }

// AppConfig is the root configuration structure
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Data       DataConfig       `yaml:"data"`
	Simulation SimulationConfig `yaml:"simulation"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Addr is the listen address.
func (c AppConfig) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}
