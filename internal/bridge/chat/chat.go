// Package chat coordinates one chat turn end to end: gather a data
// sample from the session's rendering clients, call the chart
// generator, push the result to the session, and answer the caller.
package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/generator"
	"github.com/chartbridge/chartbridge/internal/bridge/session"
	"github.com/chartbridge/chartbridge/internal/bridge/wire"
	"github.com/chartbridge/chartbridge/pkg/types"
)

// ChatRequest is one turn submitted by the chat client. DataContext is
// a fallback description of the data, consulted only when no live
// session can supply a sample.
type ChatRequest struct {
	Prompt      string         `json:"prompt" validate:"required"`
	DataContext map[string]any `json:"dataContext,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
}

// ChatResponse is the synchronous answer to a chat turn. Success is
// false when generation failed; the explanation then says why in user
// terms. Transport-level failures are reserved for malformed requests.
type ChatResponse struct {
	Explanation        string         `json:"explanation"`
	ChartConfig        map[string]any `json:"chartConfig,omitempty"`
	DataSource         map[string]any `json:"dataSource,omitempty"`
	DisplayFormat      map[string]any `json:"displayFormat,omitempty"`
	DataTransformation map[string]any `json:"dataTransformation,omitempty"`
	Success            bool           `json:"success"`
}

// Coordinator runs chat turns against a session registry and a chart
// generator.
type Coordinator struct {
	gen           generator.ChartGenerator
	reg           *session.Registry
	cor           *session.Correlator
	sampleTimeout time.Duration
}

// NewCoordinator creates a Coordinator. sampleTimeout bounds how long a
// turn waits for a data sample before falling back to the cache.
func NewCoordinator(gen generator.ChartGenerator, reg *session.Registry, sampleTimeout time.Duration) *Coordinator {
	return &Coordinator{
		gen:           gen,
		reg:           reg,
		cor:           session.NewCorrelator(reg),
		sampleTimeout: sampleTimeout,
	}
}

// ProcessChatTurn runs one turn. When the request names a session, a
// fresh data sample is requested from its rendering clients, with the
// cached sample as the timeout fallback; the request's own data context
// is then ignored, even when the sample comes back empty. Only a turn
// without a session, or one whose sample request errored out, falls
// back to the supplied data context. A successful chart is broadcast to
// the session best-effort before the caller gets the synchronous
// response.
func (c *Coordinator) ProcessChatTurn(ctx context.Context, req *ChatRequest) *ChatResponse {
	sample := types.NilAny()
	dataContext := req.DataContext
	if req.SessionID != "" {
		dataContext = nil
		var err error
		sample, err = c.cor.RequestSample(ctx, req.SessionID, c.sampleTimeout)
		if err != nil {
			// Cancellation mid-wait. Proceed on the fallback context
			// rather than failing the turn.
			log.Ctx(ctx).Warn().Err(err).Str("session_id", req.SessionID).Msg("sample request aborted")
			sample = types.NilAny()
			dataContext = req.DataContext
		}
	}

	update, err := c.gen.Generate(ctx, generator.Turn{
		Prompt:      req.Prompt,
		DataContext: dataContext,
		Sample:      sample,
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("chart generation failed")
		return &ChatResponse{
			Explanation: "I could not generate a chart for that request. Please try rephrasing it.",
			Success:     false,
		}
	}

	if req.SessionID != "" {
		c.pushUpdate(ctx, req.SessionID, update)
	}

	return &ChatResponse{
		Explanation:        update.Explanation,
		ChartConfig:        update.ChartConfig,
		DataSource:         update.DataSource,
		DisplayFormat:      update.DisplayFormat,
		DataTransformation: update.DataTransformation,
		Success:            true,
	}
}

// pushUpdate broadcasts the chart to the session. Delivery is
// best-effort; the synchronous response is the source of truth.
func (c *Coordinator) pushUpdate(ctx context.Context, sessionID string, update *wire.ChartUpdate) {
	frame, err := wire.NewChartUpdate(update)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to encode chart update")
		return
	}
	result := c.reg.BroadcastToSession(ctx, sessionID, frame)
	log.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Int("delivered", result.Delivered).
		Int("dropped", len(result.Dropped)).
		Msg("chart update pushed")
}
