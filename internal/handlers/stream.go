package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const streamWriteTimeout = 5 * time.Second

// Stream upgrades to a websocket and pushes every published state as a
// JSON text message. Client messages are ignored. Cross-origin browsers
// are refused unless their host matches one of the configured origins.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	for state := range h.core.Watch(ctx) {
		data, err := json.Marshal(state)
		if err != nil {
			h.logger.Error("failed to marshal state", zap.Error(err))
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		err = conn.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.logger.Debug("stream client gone", zap.Error(err))
			return
		}
	}

	if ctx.Err() != nil {
		return
	}
	conn.Close(websocket.StatusGoingAway, "server shutting down")
}
