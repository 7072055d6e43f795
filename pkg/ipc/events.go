package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/odvcencio/pagestream/pkg/telemetry"
)

const eventWriteTimeout = 15 * time.Second

type wsConn interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
	Close(status websocket.StatusCode, reason string) error
}

// eventClient relays hub events to one websocket subscriber.
type eventClient struct {
	conn   wsConn
	events <-chan telemetry.Event
	filter func(telemetry.Event) bool
}

func (c *eventClient) writeLoop(ctx context.Context) error {
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				return nil
			}
			if c.filter != nil && !c.filter(event) {
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err = c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// eventFilter matches events on the optional userId, sessionId and type
// prefix query parameters.
func eventFilter(r *http.Request) func(telemetry.Event) bool {
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("userId"))
	sessionID := strings.TrimSpace(query.Get("sessionId"))
	prefix := strings.TrimSpace(query.Get("type"))
	if userID == "" && sessionID == "" && prefix == "" {
		return nil
	}
	return func(event telemetry.Event) bool {
		if userID != "" && event.UserID != userID {
			return false
		}
		if sessionID != "" && event.SessionID != sessionID {
			return false
		}
		return prefix == "" || strings.HasPrefix(string(event.Type), prefix)
	}
}

// handleEvents streams telemetry events as JSON text messages.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("telemetry disabled"))
		return
	}
	if !s.isWebSocketOriginAllowed(r) {
		respondError(w, http.StatusForbidden, errors.New("origin not allowed"))
		return
	}
	if !s.events.Acquire() {
		respondError(w, http.StatusServiceUnavailable, errors.New("too many event stream clients"))
		return
	}
	defer s.events.Release()

	// Subscribe before the handshake completes so the client sees every event
	// published after Dial returns.
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("event websocket accept failed", "error", err.Error())
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxWSReadBytesEventStream)

	// Subscribers never send; CloseRead cancels ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	startWSPing(ctx, conn, s.cfg.PingInterval)

	client := &eventClient{conn: conn, events: events, filter: eventFilter(r)}
	if err := client.writeLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("event stream ended", "error", err.Error())
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
