package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/theoremus-urban-solutions/trajectory-replay/gtfsrt"
	"github.com/theoremus-urban-solutions/trajectory-replay/ingest"
	"github.com/theoremus-urban-solutions/trajectory-replay/internal"
)

func main() {
	source := flag.String("vehiclePositions", "", "GTFS-RT VehiclePositions URL or file path")
	outDir := flag.String("out", "data/gtfsrt", "directory receiving NN_vehicle_positions.pbs")
	fileID := flag.Int("file", 1, "recording number")
	interval := flag.Duration("interval", 10*time.Second, "poll interval")
	timeout := flag.Duration("timeout", 15*time.Second, "HTTP timeout per fetch")
	count := flag.Int("count", 0, "stop after this many snapshots (0 = until interrupted)")
	level := flag.String("log", "info", "debug|info|warn|error")
	flag.Parse()

	logger := internal.InitLogging(*level, "text")
	if *source == "" || *fileID < 1 {
		fmt.Fprintln(os.Stderr, "usage: gtfsrt-record -vehiclePositions URL [-out DIR] [-file N]")
		os.Exit(2)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("create output dir", "error", err)
		os.Exit(1)
	}
	path := ingest.VehiclePositionsFile(*outDir, *fileID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Error("open recording", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := gtfsrt.NewRecorder(gtfsrt.NewFetcher(*timeout), *source, *interval, logger)
	abs, _ := filepath.Abs(path)
	logger.Info("recording vehicle positions", "source", *source, "file", abs, "interval", *interval)
	n, runErr := rec.Run(ctx, f, *count)
	if err := f.Close(); err != nil && runErr == nil {
		runErr = err
	}
	logger.Info("recording finished", "snapshots", n)
	if runErr != nil {
		logger.Error("recording failed", "error", runErr)
		os.Exit(1)
	}
}
