package testutil

import (
	"encoding/json"
	"errors"
	"sync"
)

// ErrWriteFailed is returned by CaptureTransport when FailWrites is set.
var ErrWriteFailed = errors.New("scripted write failure")

// CaptureTransport records every written message.
type CaptureTransport struct {
	// OnWrite runs after each successful write, outside the lock, with the
	// decoded message.
	OnWrite func(msg map[string]any)
	// FailAfter makes writes fail once this many have succeeded; 0 never fails.
	FailAfter int

	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (t *CaptureTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	if t.FailAfter > 0 && len(t.messages) >= t.FailAfter {
		t.mu.Unlock()
		return ErrWriteFailed
	}
	t.messages = append(t.messages, append([]byte(nil), data...))
	hook := t.OnWrite
	t.mu.Unlock()

	if hook != nil {
		var m map[string]any
		_ = json.Unmarshal(data, &m)
		hook(m)
	}
	return nil
}

func (t *CaptureTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *CaptureTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Decoded returns every message decoded as a JSON object.
func (t *CaptureTransport) Decoded() []map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]map[string]any, 0, len(t.messages))
	for _, raw := range t.messages {
		var m map[string]any
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

// Types returns the "type" field of every message in order.
func (t *CaptureTransport) Types() []string {
	msgs := t.Decoded()
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		s, _ := m["type"].(string)
		out = append(out, s)
	}
	return out
}

// Count returns how many messages carry the given type.
func (t *CaptureTransport) Count(msgType string) int {
	n := 0
	for _, s := range t.Types() {
		if s == msgType {
			n++
		}
	}
	return n
}
