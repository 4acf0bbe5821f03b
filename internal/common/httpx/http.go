// Package httpx provides HTTP request/response plumbing shared by the
// service's chi handlers: JSON responses, error translation, request
// parsing, and a tracking response writer.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/common/apperrors"
)

// GetRequestData parses a JSON request body into data. Only POST and
// PUT requests carry bodies this service accepts.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response describes the outcome of a RequestHandler: a status code and
// a payload to serialize, plus an optional Location header for creates.
type Response struct {
	StatusCode  int
	Location    string
	Response    any
	ContentType string
}

// RequestHandler is the handler signature used throughout the service.
// Returning an error produces a well-formed JSON error response.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHandler adapts a RequestHandler to http.HandlerFunc, translating
// apperrors and httpx errors into JSON error responses.
func WrapHandler(handler RequestHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			sendHandlerError(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case "application/json":
			SendJSONRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case "text/plain":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(rsp.StatusCode)
			w.Write([]byte(rsp.Response.(string)))
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	}
}

func sendHandlerError(w http.ResponseWriter, err error) {
	if httperror, ok := err.(*Error); ok {
		httperror.Send(w)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		statusCode := appErr.StatusCode()
		if statusCode == 0 {
			statusCode = http.StatusInternalServerError
		}
		(&Error{
			StatusCode:  statusCode,
			Description: appErr.ErrorAll(),
		}).Send(w)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
