package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/theoremus-urban-solutions/trajectory-replay/metrics"
)

// HandlerOptions configures the websocket endpoint.
type HandlerOptions struct {
	// PingInterval between keepalive pings; the read deadline is twice this.
	PingInterval time.Duration
	WriteTimeout time.Duration
	// ReadLimit caps inbound message size in bytes.
	ReadLimit int64
	// AllowedOrigins lists accepted Origin headers; empty accepts any.
	AllowedOrigins []string
	FPS            FPSLimits
	NewPacer       PacerFactory
}

func (o *HandlerOptions) applyDefaults() {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024
	}
	if o.FPS.Default == 0 {
		o.FPS.Default = DefaultFPS
	}
	if o.FPS.Max == 0 {
		o.FPS.Max = MaxFPS
	}
	if o.NewPacer == nil {
		o.NewPacer = NewSleepPacer
	}
}

// Stats is a point-in-time view of the endpoint.
type Stats struct {
	ActiveConnections int      `json:"active_connections"`
	ActiveStreams     int64    `json:"active_streams"`
	MaxConnections    int      `json:"max_connections"`
	ClientIDs         []string `json:"client_ids"`
}

// Handler is the simulation websocket endpoint.
type Handler struct {
	manager  *Manager
	sessions SessionLookup
	opts     HandlerOptions
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *metrics.Collectors

	activeStreams atomic.Int64
}

func NewHandler(manager *Manager, sessions SessionLookup, opts HandlerOptions, logger *slog.Logger, m *metrics.Collectors) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	opts.applyDefaults()
	h := &Handler{
		manager:  manager,
		sessions: sessions,
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (h *Handler) Stats() Stats {
	return Stats{
		ActiveConnections: h.manager.Count(),
		ActiveStreams:     h.activeStreams.Load(),
		MaxConnections:    h.manager.limit,
		ClientIDs:         h.manager.IDs(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.manager.Full() {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	clientID := uuid.NewString()
	t := NewWSTransport(conn, h.opts.WriteTimeout)
	if err := h.manager.Register(clientID, t); err != nil {
		h.logger.Warn("connection refused", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &client{h: h, id: clientID, conn: conn}
	defer func() {
		cancel()
		h.manager.Unregister(clientID)
		c.streams.Wait()
	}()

	if err := h.manager.SendTo(clientID, Connected{Type: TypeConnected, ClientID: clientID}); err != nil {
		return
	}
	go c.pingLoop(ctx)
	c.readLoop(ctx)
}

// client is the per-connection receive side.
type client struct {
	h    *Handler
	id   string
	conn *websocket.Conn

	streaming atomic.Bool
	streams   sync.WaitGroup
}

func (c *client) readLoop(ctx context.Context) {
	wait := 2 * c.h.opts.PingInterval
	c.conn.SetReadLimit(c.h.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.h.logger.Info("websocket read ended", "client_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wait))
		c.handle(ctx, data)
	}
}

func (c *client) handle(ctx context.Context, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		_ = c.h.manager.SendTo(c.id, newError("", "Invalid JSON message"))
		return
	}
	switch cmd.Type {
	case TypePing:
		_ = c.h.manager.SendTo(c.id, Pong{Type: TypePong})
	case TypeStartSessionStream:
		c.startStream(ctx, cmd)
	default:
		c.h.logger.Warn("unknown message type", "client_id", c.id, "type", cmd.Type)
		_ = c.h.manager.SendTo(c.id, newError("", fmt.Sprintf("Unknown message type: %s", cmd.Type)))
	}
}

// startStream runs a controller in its own goroutine so pings are still
// answered while frames go out. One stream per connection at a time.
func (c *client) startStream(ctx context.Context, cmd Command) {
	if !c.streaming.CompareAndSwap(false, true) {
		_ = c.h.manager.SendTo(c.id, newError(cmd.SessionID, "stream already in progress"))
		return
	}
	fps := c.h.opts.FPS.Normalize(cmd.FPS)
	ctrl := NewController(c.id, c.h.sessions, c.h.manager, c.h.opts.NewPacer, c.h.logger, c.h.metrics)

	c.streams.Add(1)
	c.h.activeStreams.Add(1)
	go func() {
		defer c.streams.Done()
		defer c.h.activeStreams.Add(-1)
		defer c.streaming.Store(false)
		ctrl.Run(ctx, cmd.SessionID, fps)
	}()
}

func (c *client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.h.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.h.logger.Info("ping failed", "client_id", c.id, "error", err)
				c.h.manager.Unregister(c.id)
				return
			}
		}
	}
}

// WSTransport writes text frames to a gorilla websocket connection.
type WSTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration) *WSTransport {
	return &WSTransport{conn: conn, writeTimeout: writeTimeout}
}

func (t *WSTransport) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
