// pattern: Imperative Shell

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleWebsocket streams envelopes as JSON text frames. Client messages are
// ignored; the connection ends when the client closes it or the server
// shuts down.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	filter := kindFilter(r)

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	// Do not use r.Context() after this. Restrict to localhost origins to
	// prevent cross-origin WebSocket attacks.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"127.0.0.1:*", "localhost:*"},
	})
	if err != nil {
		s.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()
	conn.SetReadLimit(64 << 10)

	ctx := conn.CloseRead(context.Background())
	s.logger.Debug("event stream connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if !accepts(filter, env.Kind) {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}
