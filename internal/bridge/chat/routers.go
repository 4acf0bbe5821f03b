package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chartbridge/chartbridge/internal/common/httpx"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Router mounts the chat endpoint.
func Router(r chi.Router, c *Coordinator) {
	r.Method(http.MethodPost, "/", httpx.WrapHandler(chatHandler(c)))
}

func chatHandler(c *Coordinator) httpx.RequestHandler {
	return func(r *http.Request) (*httpx.Response, error) {
		req := &ChatRequest{}
		if err := httpx.GetRequestData(r, req); err != nil {
			return nil, err
		}
		if err := validate.Struct(req); err != nil {
			return nil, httpx.ErrInvalidRequest("prompt is required")
		}
		rsp := c.ProcessChatTurn(r.Context(), req)
		return &httpx.Response{
			StatusCode: http.StatusOK,
			Response:   rsp,
		}, nil
	}
}
