package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/wire"
	"github.com/chartbridge/chartbridge/internal/common/httpx"
)

const maxFrameSize = 1 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Channels carry no auth; origin checks apply to the HTTP API only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// channelHandler upgrades the request to a WebSocket and runs the
// connection's read loop. The connection joins the session named in the
// URL and leaves it on every exit path, including read errors.
func channelHandler(reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		if sessionID == "" {
			httpx.SendError(w, ErrInvalidSession)
			return
		}

		// Clients may pin the protocol version they speak.
		if v := r.URL.Query().Get("v"); v != "" && !wire.IsVersionCompatible(v) {
			httpx.ErrInvalidRequest("unsupported protocol version: " + v).Send(w)
			return
		}

		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			log.Ctx(r.Context()).Error().Err(err).Str("session_id", sessionID).Msg("channel upgrade failed")
			return
		}
		ws.SetReadLimit(maxFrameSize)

		conn := newWSConn(ws, reg.opts.SendBuffer)
		reg.Connect(sessionID, conn)
		defer reg.Disconnect(sessionID, conn.ID())

		ctx := log.Ctx(r.Context()).With().
			Str("session_id", sessionID).
			Str("conn_id", conn.ID()).
			Logger().WithContext(r.Context())

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Ctx(ctx).Warn().Err(err).Msg("channel read failed")
				}
				return
			}
			reg.HandleInbound(ctx, sessionID, data)
		}
	}
}
