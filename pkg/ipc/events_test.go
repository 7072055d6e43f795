package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/odvcencio/pagestream/pkg/telemetry"
)

type recordingConn struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
}

func (c *recordingConn) Write(_ context.Context, _ websocket.MessageType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) Close(websocket.StatusCode, string) error { return nil }

func TestEventFilter(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/events?userId=u1&type=session.", nil)
	filter := eventFilter(req)
	require.NotNil(t, filter)

	assert.True(t, filter(telemetry.Event{Type: telemetry.EventSessionCreated, UserID: "u1"}))
	assert.False(t, filter(telemetry.Event{Type: telemetry.EventEngineLaunched, UserID: "u1"}))
	assert.False(t, filter(telemetry.Event{Type: telemetry.EventSessionCreated, UserID: "u2"}))

	assert.Nil(t, eventFilter(httptest.NewRequest("GET", "/api/events", nil)))
}

func TestEventClientWriteLoop(t *testing.T) {
	events := make(chan telemetry.Event, 3)
	events <- telemetry.Event{Type: telemetry.EventSessionCreated, SessionID: "s1"}
	events <- telemetry.Event{Type: telemetry.EventSessionCreated, SessionID: "s2"}
	events <- telemetry.Event{Type: telemetry.EventSessionRemoved, SessionID: "s1"}
	close(events)

	conn := &recordingConn{}
	client := &eventClient{
		conn:   conn,
		events: events,
		filter: func(e telemetry.Event) bool { return e.SessionID == "s1" },
	}
	require.NoError(t, client.writeLoop(context.Background()))

	require.Len(t, conn.messages, 2)
	var first telemetry.Event
	require.NoError(t, json.Unmarshal(conn.messages[0], &first))
	assert.Equal(t, telemetry.EventSessionCreated, first.Type)
}

func TestEventClientWriteLoopStopsOnWriteError(t *testing.T) {
	events := make(chan telemetry.Event, 1)
	events <- telemetry.Event{Type: telemetry.EventSessionCreated}

	conn := &recordingConn{err: errors.New("broken pipe")}
	client := &eventClient{conn: conn, events: events}
	assert.EqualError(t, client.writeLoop(context.Background()), "broken pipe")
}

func TestEventClientWriteLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &eventClient{conn: &recordingConn{}, events: make(chan telemetry.Event)}
	assert.ErrorIs(t, client.writeLoop(ctx), context.Canceled)
}
