package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/theoremus-urban-solutions/trajectory-replay/metrics"
	"github.com/theoremus-urban-solutions/trajectory-replay/session"
)

// State is a controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateStreaming
	StateCompleted
	StateRejected
	StateAborted
)

var stateNames = [...]string{"IDLE", "VALIDATING", "STREAMING", "COMPLETED", "REJECTED", "ABORTED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateRejected || s == StateAborted
}

// SessionLookup is the read side of the session registry.
type SessionLookup interface {
	Get(id string) (*session.Session, bool)
}

// Sender is the part of the Manager a controller writes through.
type Sender interface {
	SendTo(id string, msg any) error
	IsRegistered(id string) bool
}

// Controller streams one session to one connection. It is single use.
type Controller struct {
	connID   string
	sessions SessionLookup
	sender   Sender
	newPacer PacerFactory
	logger   *slog.Logger
	metrics  *metrics.Collectors

	state atomic.Int32
}

func NewController(connID string, sessions SessionLookup, sender Sender, newPacer PacerFactory, logger *slog.Logger, m *metrics.Collectors) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if newPacer == nil {
		newPacer = NewSleepPacer
	}
	return &Controller{
		connID:   connID,
		sessions: sessions,
		sender:   sender,
		newPacer: newPacer,
		logger:   logger.With("client_id", connID),
		metrics:  m,
	}
}

// State returns the current state. Safe to call from any goroutine.
func (c *Controller) State() State { return State(c.state.Load()) }

func (c *Controller) set(s State) { c.state.Store(int32(s)) }

// Run streams sessionID at fps and returns the terminal state. A dropped
// connection or a cancelled ctx is noticed before each frame, so at most
// one frame is written after the drop.
func (c *Controller) Run(ctx context.Context, sessionID string, fps int) State {
	if c.State() != StateIdle {
		return c.State()
	}
	c.set(StateValidating)

	if sessionID == "" {
		return c.reject("", "session_id is required")
	}
	s, ok := c.sessions.Get(sessionID)
	if !ok {
		return c.reject(sessionID, fmt.Sprintf("Session '%s' not found on server.", sessionID))
	}

	total := s.TotalFrames()
	if err := c.sender.SendTo(c.connID, StreamStarted{
		Type: TypeStreamStarted, SessionID: sessionID, TotalFrames: total, FPS: fps,
	}); err != nil {
		return c.abort(sessionID, 0, err, false)
	}
	c.set(StateStreaming)
	c.metrics.StreamStarted()
	c.logger.Info("stream started", "session_id", sessionID, "total_frames", total, "fps", fps)

	pacer := c.newPacer(fps)
	for i := 0; i < total; i++ {
		if ctx.Err() != nil || !c.sender.IsRegistered(c.connID) {
			return c.abort(sessionID, i, ctx.Err(), true)
		}
		f, _ := s.Table.Frame(i)
		if err := c.sender.SendTo(c.connID, newFrameMessage(sessionID, f)); err != nil {
			return c.abort(sessionID, i, err, true)
		}
		c.metrics.FrameSent()
		if i == total-1 {
			break
		}
		if err := pacer.Wait(ctx); err != nil {
			return c.abort(sessionID, i+1, err, true)
		}
	}

	if err := c.sender.SendTo(c.connID, StreamCompleted{Type: TypeStreamCompleted, SessionID: sessionID}); err != nil {
		return c.abort(sessionID, total, err, true)
	}
	c.set(StateCompleted)
	c.metrics.StreamFinished("completed", true)
	c.logger.Info("stream completed", "session_id", sessionID, "frames", total)
	return StateCompleted
}

func (c *Controller) reject(sessionID, reason string) State {
	c.set(StateRejected)
	c.metrics.StreamFinished("rejected", false)
	c.logger.Warn("stream rejected", "session_id", sessionID, "reason", reason)
	if err := c.sender.SendTo(c.connID, newError(sessionID, reason)); err != nil {
		c.logger.Debug("rejection not delivered", "error", err)
	}
	return StateRejected
}

// abort ends the stream at frame next. A transport failure or a vanished
// peer gets no message; any other error is reported if the peer is still
// reachable.
func (c *Controller) abort(sessionID string, next int, cause error, started bool) State {
	c.set(StateAborted)
	c.metrics.StreamFinished("aborted", started)

	var sendErr *SendError
	peerGone := cause == nil || errors.As(cause, &sendErr) ||
		errors.Is(cause, context.Canceled) || !c.sender.IsRegistered(c.connID)
	c.logger.Info("stream aborted", "session_id", sessionID, "next_frame", next, "peer_gone", peerGone, "error", cause)
	if !peerGone {
		_ = c.sender.SendTo(c.connID, newError(sessionID, fmt.Sprintf("Streaming failed: %v", cause)))
	}
	return StateAborted
}
