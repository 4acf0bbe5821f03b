package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/common/logtrace"
)

// SendJSONRsp sends a JSON response with the given status code. msg may
// be pre-marshaled JSON (string or []byte) or any marshalable value. A
// Location header is set for 201 responses when location is provided.
func SendJSONRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var msgJSON []byte
	switch v := msg.(type) {
	case string:
		if b := []byte(v); json.Valid(b) {
			msgJSON = b
		}
	case []byte:
		if json.Valid(v) {
			msgJSON = v
		}
	default:
		var err error
		msgJSON, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("Id: " + logtrace.RequestIDFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	w.Write(msgJSON)
}
