package stream

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer waits between frames. Wait returns ctx.Err() when cancelled.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFactory builds a pacer for one stream at fps.
type PacerFactory func(fps int) Pacer

// Pacing strategies selectable by configuration.
const (
	PacingSleep       = "sleep"
	PacingTokenBucket = "token_bucket"
)

// PacerFor returns the factory for strategy, defaulting to sleep pacing.
func PacerFor(strategy string) PacerFactory {
	if strategy == PacingTokenBucket {
		return NewRatePacer
	}
	return NewSleepPacer
}

func interval(fps int) time.Duration {
	if fps < MinFPS {
		fps = MinFPS
	}
	return time.Second / time.Duration(fps)
}

// SleepPacer sleeps a fixed 1/fps after every frame. Overruns are not
// made up.
type SleepPacer struct {
	interval time.Duration
}

func NewSleepPacer(fps int) Pacer {
	return &SleepPacer{interval: interval(fps)}
}

func (p *SleepPacer) Wait(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RatePacer is a token bucket with burst 1, so a slow send is followed by
// a shorter wait instead of a full interval.
type RatePacer struct {
	limiter *rate.Limiter
}

func NewRatePacer(fps int) Pacer {
	l := rate.NewLimiter(rate.Every(interval(fps)), 1)
	// The first frame goes out before the first Wait.
	l.Allow()
	return &RatePacer{limiter: l}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
