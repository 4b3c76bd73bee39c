package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/theoremus-urban-solutions/trajectory-replay/api"
	"github.com/theoremus-urban-solutions/trajectory-replay/config"
	"github.com/theoremus-urban-solutions/trajectory-replay/datascan"
	"github.com/theoremus-urban-solutions/trajectory-replay/ingest"
	"github.com/theoremus-urban-solutions/trajectory-replay/internal"
	"github.com/theoremus-urban-solutions/trajectory-replay/mapdata"
	"github.com/theoremus-urban-solutions/trajectory-replay/metrics"
	"github.com/theoremus-urban-solutions/trajectory-replay/session"
	"github.com/theoremus-urban-solutions/trajectory-replay/stream"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (default: search config.yml, ./config/config.yml)")
	port := flag.Int("port", 0, "listen port (overrides config)")
	dataDir := flag.String("data", "", "data directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dataDir != "" {
		cfg.Data.Dir = *dataDir
	}

	logger := internal.InitLogging(cfg.Logging.Level, cfg.Logging.Format)
	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.AppConfig, logger *slog.Logger) error {
	var (
		m        *metrics.Collectors
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.On() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		var err error
		if m, err = metrics.New(reg); err != nil {
			return err
		}
		gatherer = reg
	}

	dispatcher := ingest.NewDispatcher(logger)
	kinds := supportedKinds(dispatcher, cfg.Data.SupportedKinds, logger)

	sessions := session.NewRegistry()
	creator := session.NewCreator(sessions, dispatcher, mapdata.NewCache(), session.CreatorOptions{
		MaxConcurrentParses: int64(cfg.Simulation.MaxConcurrentParses),
		DefaultFrameStep:    cfg.Simulation.DefaultFrameStep,
		BaseInterval:        cfg.Simulation.BaseIntervalMS,
		MaxDurationMS:       cfg.Simulation.MaxDurationMS,
	}, logger, m)

	manager := stream.NewManager(cfg.WebSocket.MaxConnections, logger, m)
	ws := stream.NewHandler(manager, sessions, stream.HandlerOptions{
		PingInterval:   cfg.WebSocket.PingInterval,
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		ReadLimit:      cfg.WebSocket.ReadLimit,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
		FPS:            stream.FPSLimits{Default: cfg.Simulation.DefaultFPS, Max: cfg.Simulation.MaxFPS},
		NewPacer:       stream.PacerFor(cfg.Simulation.Pacing),
	}, logger, m)

	router := api.NewRouter(api.Deps{
		Creator:     creator,
		Sessions:    sessions,
		Scanner:     datascan.NewScanner(cfg.Data.Dir, datascan.DefaultLayout(), logger),
		WebSocket:   ws,
		Kinds:       kinds,
		Gatherer:    gatherer,
		MetricsPath: cfg.Metrics.Path,
		Logger:      logger,
	})

	logger.Info("starting trajectory replay",
		"addr", cfg.Addr(), "data_dir", cfg.Data.Dir, "datasets", kinds,
		"pacing", cfg.Simulation.Pacing, "max_connections", cfg.WebSocket.MaxConnections)
	return api.NewServer(cfg, router, logger).ListenAndServe(context.Background())
}

// supportedKinds keeps the configured kinds that have a parser.
func supportedKinds(d *ingest.Dispatcher, configured []string, logger *slog.Logger) []string {
	out := make([]string, 0, len(configured))
	for _, k := range configured {
		if !d.Supports(k) {
			logger.Warn("ignoring dataset kind without a parser", "kind", k)
			continue
		}
		out = append(out, k)
	}
	return out
}
