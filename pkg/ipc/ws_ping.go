package ipc

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

const (
	wsPingInterval = 20 * time.Second
	wsPingTimeout  = 5 * time.Second
)

// startWSPing pings conn every interval until ctx is done. A non-positive
// interval uses wsPingInterval.
func startWSPing(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if conn == nil {
		return
	}
	if interval <= 0 {
		interval = wsPingInterval
	}
	timeout := wsPingTimeout
	if timeout >= interval {
		timeout = interval / 2
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, timeout)
				_ = conn.Ping(pingCtx)
				cancel()
			}
		}
	}()
}
