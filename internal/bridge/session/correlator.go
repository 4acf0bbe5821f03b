package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/wire"
	"github.com/chartbridge/chartbridge/pkg/types"
)

// Correlator issues sample requests over a session's channels and
// correlates the asynchronous reply back to the caller. A request only
// observes replies that arrive after its own registration; the reply
// that does arrive resolves every waiter pending at that moment.
type Correlator struct {
	reg *Registry
}

// NewCorrelator creates a Correlator over reg.
func NewCorrelator(reg *Registry) *Correlator {
	return &Correlator{reg: reg}
}

// RequestSample broadcasts a sample request to the session and waits
// for the first matching reply. On timeout it returns the session's
// cached sample, which may be absent; timeout is a defined fallback
// path, not an error. An unknown session behaves like an empty-cache
// timeout. The only error returned is ctx cancellation.
//
// Each concurrent caller gets its own timeout and resolution, all fed
// by the same incoming reply. A waiter is settled exactly once: a reply
// past the timeout cannot resolve it, but still updates the cache.
func (c *Correlator) RequestSample(ctx context.Context, sessionID string, timeout time.Duration) (types.NullableAny, error) {
	waiterID, resolved := c.reg.registerWaiter(sessionID)

	result := c.reg.BroadcastToSession(ctx, sessionID, wire.NewSampleRequest())
	if result.Delivered == 0 {
		// No rendering client is listening; the timeout path with the
		// cached sample will carry the call.
		log.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("sample request has no recipients")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sample := <-resolved:
		return sample, nil
	case <-timer.C:
		if c.reg.cancelWaiter(sessionID, waiterID) {
			log.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("sample request timed out, using cache")
			return c.reg.CachedSample(sessionID), nil
		}
		// A reply settled the waiter concurrently with the timer; its
		// payload is already buffered.
		return <-resolved, nil
	case <-ctx.Done():
		if c.reg.cancelWaiter(sessionID, waiterID) {
			return types.NilAny(), ctx.Err()
		}
		return <-resolved, nil
	}
}
