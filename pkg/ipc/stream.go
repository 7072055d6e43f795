package ipc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"github.com/odvcencio/pagestream/pkg/interact"
	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/session"
	"github.com/odvcencio/pagestream/pkg/stream"
	"github.com/odvcencio/pagestream/pkg/telemetry"
)

// connSink writes frames to one websocket as binary messages.
type connSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (c *connSink) SendFrame(ctx context.Context, frame stream.Frame) error {
	writeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageBinary, frame.Data)
}

// handleStream serves GET /ws?userId=&sessionId=&url=.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("userId"))
	if userID == "" {
		userID = session.GenerateID("user")
	}
	sessionID := strings.TrimSpace(query.Get("sessionId"))
	if sessionID == "" {
		sessionID = session.GenerateID("session")
	}
	if !session.ValidID(userID) || !session.ValidID(sessionID) {
		respondError(w, http.StatusBadRequest, errors.New("invalid userId or sessionId"))
		return
	}
	if !s.isWebSocketOriginAllowed(r) {
		respondError(w, http.StatusForbidden, errors.New("origin not allowed"))
		return
	}
	if !s.streams.Acquire() {
		respondError(w, http.StatusServiceUnavailable, errors.New("too many stream connections"))
		return
	}
	defer s.streams.Release()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn("stream websocket accept failed", "error", err.Error())
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxWSReadBytesStream)

	logger := s.logger.WithSession(userID, sessionID)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess, reused, err := s.registry.Resolve(ctx, userID, sessionID, query.Get("url"))
	if err != nil {
		logger.Error("session setup failed", "error", err.Error())
		_ = conn.Close(websocket.StatusInternalError, "session setup failed")
		return
	}

	observability.ActiveConnections.Inc()
	defer observability.ActiveConnections.Dec()
	s.hub.Publish(telemetry.Event{
		Type:      telemetry.EventConnectionOpened,
		UserID:    userID,
		SessionID: sessionID,
		Data:      map[string]any{"reused": reused},
	})
	logger.Info("stream connected", "reused", reused)

	sink := &connSink{conn: conn, timeout: s.cfg.WriteTimeout}
	sess.Attach(sink)
	router := interact.NewRouter(sess.Surface(), sess.Scheduler(), interact.Options{
		NavigationTimeout: s.registry.Config().NavigationTimeout,
		Logger:            logger,
		OnTerminal: func() {
			s.registry.Evict(sess, session.ReasonClosed)
		},
	})
	router.Prime()
	startWSPing(ctx, conn, s.cfg.PingInterval)

	readErr := s.readCommands(ctx, conn, router)

	if sess.Detach(sink) {
		s.registry.Release(sess.Key())
	}
	s.hub.Publish(telemetry.Event{
		Type:      telemetry.EventConnectionClosed,
		UserID:    userID,
		SessionID: sessionID,
	})

	switch status := websocket.CloseStatus(readErr); {
	case status != -1:
		logger.Info("stream disconnected", "status", status.String())
	case errors.Is(readErr, context.Canceled):
		logger.Info("stream disconnected", "reason", "server shutdown")
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
	default:
		logger.Info("stream disconnected", "error", readErr.Error())
	}
}

// readCommands feeds every inbound message to router until the connection
// ends. Commands run detached from ctx so a disconnect never aborts a surface
// operation half way.
func (s *Server) readCommands(ctx context.Context, conn *websocket.Conn, router *interact.Router) error {
	cmdCtx := context.WithoutCancel(ctx)
	for {
		_, reader, err := conn.Reader(ctx)
		if err != nil {
			return err
		}
		err = s.buffers.ReadAll(reader, func(raw []byte) {
			_ = router.Dispatch(cmdCtx, raw)
		})
		if err != nil {
			return err
		}
	}
}
