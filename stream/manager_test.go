package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/trajectory-replay/internal/testutil"
)

func TestManager_RegisterLimit(t *testing.T) {
	m := NewManager(2, nil, nil)
	require.NoError(t, m.Register("a", &testutil.CaptureTransport{}))
	assert.False(t, m.Full())
	require.NoError(t, m.Register("b", &testutil.CaptureTransport{}))
	assert.True(t, m.Full())

	err := m.Register("c", &testutil.CaptureTransport{})
	assert.ErrorIs(t, err, ErrTooManyConnections)
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, []string{"a", "b"}, m.IDs())
}

func TestManager_RegisterDuplicate(t *testing.T) {
	m := NewManager(0, nil, nil)
	require.NoError(t, m.Register("a", &testutil.CaptureTransport{}))
	assert.ErrorIs(t, m.Register("a", &testutil.CaptureTransport{}), ErrDuplicateConnection)
	assert.False(t, m.Full())
}

func TestManager_UnregisterClosesOnce(t *testing.T) {
	m := NewManager(0, nil, nil)
	tr := &testutil.CaptureTransport{}
	require.NoError(t, m.Register("a", tr))

	assert.True(t, m.Unregister("a"))
	assert.True(t, tr.Closed())
	assert.False(t, m.IsRegistered("a"))
	assert.False(t, m.Unregister("a"))
}

func TestManager_SendTo(t *testing.T) {
	m := NewManager(0, nil, nil)
	tr := &testutil.CaptureTransport{}
	require.NoError(t, m.Register("a", tr))

	require.NoError(t, m.SendTo("a", Pong{Type: TypePong}))
	assert.Equal(t, []string{TypePong}, tr.Types())
}

func TestManager_SendToUnknown(t *testing.T) {
	m := NewManager(0, nil, nil)
	err := m.SendTo("ghost", Pong{Type: TypePong})

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Equal(t, "ghost", sendErr.ConnID)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestManager_WriteFailureUnregisters(t *testing.T) {
	m := NewManager(0, nil, nil)
	tr := &testutil.CaptureTransport{FailAfter: 1}
	require.NoError(t, m.Register("a", tr))

	require.NoError(t, m.SendTo("a", Pong{Type: TypePong}))
	err := m.SendTo("a", Pong{Type: TypePong})

	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.ErrorIs(t, err, testutil.ErrWriteFailed)
	assert.False(t, m.IsRegistered("a"))
	assert.True(t, tr.Closed())
}

func TestManager_EncodeFailureKeepsConnection(t *testing.T) {
	m := NewManager(0, nil, nil)
	tr := &testutil.CaptureTransport{}
	require.NoError(t, m.Register("a", tr))

	err := m.SendTo("a", map[string]any{"bad": make(chan int)})
	require.Error(t, err)

	var sendErr *SendError
	assert.False(t, errors.As(err, &sendErr))
	assert.True(t, m.IsRegistered("a"))
	assert.Empty(t, tr.Types())
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager(0, nil, nil)
	ok1 := &testutil.CaptureTransport{}
	bad := &testutil.CaptureTransport{FailAfter: 1}
	ok2 := &testutil.CaptureTransport{}
	require.NoError(t, m.Register("a", ok1))
	require.NoError(t, m.Register("b", bad))
	require.NoError(t, m.Register("c", ok2))
	require.NoError(t, bad.WriteMessage([]byte(`{}`)))

	failed, err := m.Broadcast(Pong{Type: TypePong})
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"a", "c"}, m.IDs())
	assert.Equal(t, 1, ok1.Count(TypePong))
	assert.Equal(t, 1, ok2.Count(TypePong))
}
