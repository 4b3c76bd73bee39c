package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/theoremus-urban-solutions/trajectory-replay/metrics"
)

var (
	// ErrNotRegistered is wrapped by SendError when the id is unknown.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrTooManyConnections is returned by Register at capacity.
	ErrTooManyConnections = errors.New("too many connections")
	// ErrDuplicateConnection is returned by Register for an id in use.
	ErrDuplicateConnection = errors.New("connection id already registered")
)

// Transport is the write side of one client connection. WriteMessage is
// never called concurrently for the same transport.
type Transport interface {
	WriteMessage(data []byte) error
	Close() error
}

// SendError reports a failed write. The connection has already been
// unregistered when it is returned.
type SendError struct {
	ConnID string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.ConnID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

type connection struct {
	id        string
	transport Transport
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() { _ = c.transport.Close() })
}

// Manager maps connection ids to transports.
type Manager struct {
	mu      sync.RWMutex
	conns   map[string]*connection
	limit   int
	logger  *slog.Logger
	metrics *metrics.Collectors
}

// NewManager returns a manager accepting up to limit connections; limit <= 0
// means unbounded.
func NewManager(limit int, logger *slog.Logger, m *metrics.Collectors) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{conns: map[string]*connection{}, limit: limit, logger: logger, metrics: m}
}

func (m *Manager) Register(id string, t Transport) error {
	m.mu.Lock()
	if _, ok := m.conns[id]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, id)
	}
	if m.limit > 0 && len(m.conns) >= m.limit {
		m.mu.Unlock()
		return ErrTooManyConnections
	}
	m.conns[id] = &connection{id: id, transport: t}
	n := len(m.conns)
	m.mu.Unlock()

	m.metrics.SetConnections(n)
	m.logger.Info("client connected", "client_id", id, "connections", n)
	return nil
}

// Unregister removes id and closes its transport. It reports whether id
// was registered.
func (m *Manager) Unregister(id string) bool {
	m.mu.Lock()
	c, ok := m.conns[id]
	delete(m.conns, id)
	n := len(m.conns)
	m.mu.Unlock()
	if !ok {
		return false
	}
	c.close()
	m.metrics.SetConnections(n)
	m.logger.Info("client disconnected", "client_id", id, "connections", n)
	return true
}

func (m *Manager) IsRegistered(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.conns[id]
	return ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Full reports whether Register would refuse a new connection.
func (m *Manager) Full() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limit > 0 && len(m.conns) >= m.limit
}

// IDs returns the registered ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// SendTo encodes msg as JSON and writes it to id. An encoding failure is
// returned as is and leaves the connection registered. A write failure
// unregisters the connection and returns *SendError.
func (m *Manager) SendTo(id string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %T: %w", msg, err)
	}
	return m.write(id, data)
}

func (m *Manager) write(id string, data []byte) error {
	m.mu.RLock()
	c, ok := m.conns[id]
	m.mu.RUnlock()
	if !ok {
		return &SendError{ConnID: id, Err: ErrNotRegistered}
	}

	c.writeMu.Lock()
	err := c.transport.WriteMessage(data)
	c.writeMu.Unlock()
	if err != nil {
		m.metrics.SendError()
		m.logger.Warn("send failed, dropping connection", "client_id", id, "error", err)
		m.Unregister(id)
		return &SendError{ConnID: id, Err: err}
	}
	return nil
}

// Broadcast writes msg to every registered connection. Failed recipients
// are unregistered and do not stop delivery to the rest. It returns the
// number of failed recipients.
func (m *Manager) Broadcast(msg any) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("encode %T: %w", msg, err)
	}
	failed := 0
	for _, id := range m.IDs() {
		if err := m.write(id, data); err != nil {
			failed++
		}
	}
	return failed, nil
}
