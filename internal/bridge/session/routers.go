package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chartbridge/chartbridge/internal/common/httpx"
)

// Router mounts the session endpoints: the duplex channel upgrade and a
// diagnostics endpoint exposing session membership.
func Router(r chi.Router, reg *Registry) {
	r.Get("/{id}/channel", channelHandler(reg))
	r.Method(http.MethodGet, "/{id}", httpx.WrapHandler(sessionInfoHandler(reg)))
}

// SessionInfoRsp reports diagnostic state for one session.
type SessionInfoRsp struct {
	SessionID    string `json:"sessionId"`
	MemberCount  int    `json:"memberCount"`
	CachedSample bool   `json:"cachedSample"`
}

func sessionInfoHandler(reg *Registry) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		sessionID := chi.URLParam(r, "id")
		if sessionID == "" {
			return nil, ErrInvalidSession
		}
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response: &SessionInfoRsp{
				SessionID:    sessionID,
				MemberCount:  reg.MemberCount(sessionID),
				CachedSample: !reg.CachedSample(sessionID).IsNil(),
			},
		}, nil
	}
}
