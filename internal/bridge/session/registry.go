package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog/log"

	"github.com/chartbridge/chartbridge/internal/bridge/wire"
	"github.com/chartbridge/chartbridge/pkg/types"
)

// Options configures a Registry.
type Options struct {
	// IdleEviction is how long a session with no members and no
	// pending waiters is retained before the janitor reaps it, cached
	// sample included. Zero disables eviction.
	IdleEviction time.Duration

	// EvictionInterval is how often the janitor runs. Only meaningful
	// when IdleEviction is set.
	EvictionInterval time.Duration

	// SendBuffer is the outbound frame queue depth per connection.
	// Zero means the default.
	SendBuffer int
}

// state is the per-session mutable state. All fields are guarded by mu;
// the registry never holds two session locks at once. dead is set when
// the janitor removes the state from the map, so a caller that looked
// the pointer up before the removal knows to re-resolve it instead of
// mutating an orphan.
type state struct {
	mu       sync.Mutex
	members  map[string]Conn
	waiters  map[string]chan types.NullableAny
	sample   types.NullableAny
	lastUsed time.Time
	dead     bool
}

func newState() *state {
	return &state{
		members:  make(map[string]Conn),
		waiters:  make(map[string]chan types.NullableAny),
		lastUsed: time.Now(),
	}
}

// touch must be called with s.mu held.
func (s *state) touch() {
	s.lastUsed = time.Now()
}

// Registry maps session identifiers to their live connections, cached
// sample, and pending sample waiters. Sessions are created implicitly
// by the first Connect or sample request that names them, and reaped by
// the janitor once idle.
type Registry struct {
	sessions cmap.ConcurrentMap[string, *state]
	opts     Options

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a Registry and starts its janitor when idle
// eviction is configured.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		sessions: cmap.New[*state](),
		opts:     opts,
		stop:     make(chan struct{}),
	}
	if opts.IdleEviction > 0 {
		interval := opts.EvictionInterval
		if interval <= 0 {
			interval = time.Minute
		}
		go r.janitor(interval)
	}
	return r
}

// lockState returns the state for sessionID with its mutex held,
// creating the state if needed. The caller unlocks. A state the janitor
// reaped between the map lookup and the lock is dead; the lookup
// retries until it holds a live one, so the mutation that follows can
// never land on an orphaned state.
func (r *Registry) lockState(sessionID string) *state {
	for {
		s := r.sessions.Upsert(sessionID, nil, func(exist bool, inMap, _ *state) *state {
			if exist && inMap != nil {
				return inMap
			}
			return newState()
		})
		s.mu.Lock()
		if !s.dead {
			return s
		}
		s.mu.Unlock()
	}
}

// Connect adds conn to the session's member set, creating the session
// if it does not exist yet. Never fails after handshake acceptance.
func (r *Registry) Connect(sessionID string, conn Conn) {
	s := r.lockState(sessionID)
	s.members[conn.ID()] = conn
	s.touch()
	count := len(s.members)
	s.mu.Unlock()

	log.Info().
		Str("session_id", sessionID).
		Str("conn_id", conn.ID()).
		Int("member_count", count).
		Msg("connection joined session")
}

// Disconnect removes the connection from the session's member set and
// closes it. Idempotent: safe to call multiple times and for
// connections that are not members. Every code path that detects an
// unusable channel funnels through here.
func (r *Registry) Disconnect(sessionID, connID string) {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return
	}
	s.mu.Lock()
	conn, member := s.members[connID]
	if member {
		delete(s.members, connID)
	}
	s.touch()
	count := len(s.members)
	s.mu.Unlock()

	if !member {
		return
	}
	conn.Close()
	log.Info().
		Str("session_id", sessionID).
		Str("conn_id", connID).
		Int("member_count", count).
		Msg("connection left session")
}

// BroadcastResult reports the outcome of one broadcast: how many
// members received the frame and which members failed and were
// disconnected as a side effect.
type BroadcastResult struct {
	Delivered int
	Dropped   []string
}

// BroadcastToSession sends data to every current member of the session,
// best-effort and at most once per member. A send failure to one member
// does not prevent delivery to the others; failing members are
// disconnected. Broadcasting to an unknown or empty session delivers to
// nobody and is a normal condition, reported through logs only.
func (r *Registry) BroadcastToSession(ctx context.Context, sessionID string, data []byte) BroadcastResult {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		log.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("broadcast to unknown session")
		return BroadcastResult{}
	}

	// Snapshot the member set so concurrent disconnects during the
	// sends cannot invalidate the iteration.
	s.mu.Lock()
	snapshot := make([]Conn, 0, len(s.members))
	for _, c := range s.members {
		snapshot = append(snapshot, c)
	}
	s.touch()
	s.mu.Unlock()

	var result BroadcastResult
	for _, c := range snapshot {
		if err := c.Send(data); err != nil {
			log.Ctx(ctx).Warn().
				Err(err).
				Str("session_id", sessionID).
				Str("conn_id", c.ID()).
				Msg("send failed, dropping member")
			result.Dropped = append(result.Dropped, c.ID())
			continue
		}
		result.Delivered++
	}
	for _, id := range result.Dropped {
		r.Disconnect(sessionID, id)
	}

	if result.Delivered == 0 && len(result.Dropped) == 0 {
		log.Ctx(ctx).Debug().Str("session_id", sessionID).Msg("broadcast to empty session")
	}
	return result
}

// HandleInbound processes one frame arriving on any connection of the
// session. Sample replies update the sample cache and resolve every
// currently pending waiter; all other message types are ignored here.
func (r *Registry) HandleInbound(ctx context.Context, sessionID string, raw []byte) {
	switch wire.MessageType(raw) {
	case wire.TypeDataSampleResponse:
		sample := types.NilAny()
		if payload := wire.MessagePayload(raw); payload != nil && json.Valid(payload) {
			sample = types.NullableAnyFromRaw(payload)
		}
		r.resolveSample(ctx, sessionID, sample)
	default:
		log.Ctx(ctx).Debug().
			Str("session_id", sessionID).
			Str("type", wire.MessageType(raw)).
			Msg("ignoring inbound message")
	}
}

// resolveSample stores the sample and resolves the full current waiter
// set for the session. One reply resolves every pending waiter; a reply
// arriving with no waiters pending only updates the cache.
func (r *Registry) resolveSample(ctx context.Context, sessionID string, sample types.NullableAny) {
	s := r.lockState(sessionID)
	s.sample = sample
	resolved := s.waiters
	s.waiters = make(map[string]chan types.NullableAny)
	s.touch()
	s.mu.Unlock()

	// Each waiter channel has capacity one and receives exactly one
	// send, so this never blocks.
	for _, ch := range resolved {
		ch <- sample
	}

	log.Ctx(ctx).Debug().
		Str("session_id", sessionID).
		Int("resolved_waiters", len(resolved)).
		Msg("sample reply applied")
}

// registerWaiter adds a pending sample waiter to the session, creating
// the session if needed. The returned channel receives the payload of
// the first sample reply processed after registration.
func (r *Registry) registerWaiter(sessionID string) (string, <-chan types.NullableAny) {
	id := uuid.NewString()
	ch := make(chan types.NullableAny, 1)
	s := r.lockState(sessionID)
	s.waiters[id] = ch
	s.touch()
	s.mu.Unlock()
	return id, ch
}

// cancelWaiter removes a pending waiter. Returns true if the waiter was
// still registered, false if a reply already claimed it. Exactly one of
// cancelWaiter and resolveSample settles any given waiter.
func (r *Registry) cancelWaiter(sessionID, waiterID string) bool {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, pending := s.waiters[waiterID]; !pending {
		return false
	}
	delete(s.waiters, waiterID)
	return true
}

// CachedSample returns the most recent sample payload observed for the
// session, or an absent value if none was ever recorded. The cache is
// read, not consumed.
func (r *Registry) CachedSample(sessionID string) types.NullableAny {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return types.NilAny()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sample
}

// SessionCount returns the number of tracked sessions.
func (r *Registry) SessionCount() int {
	return r.sessions.Count()
}

// MemberCount returns the number of live connections in the session.
func (r *Registry) MemberCount(sessionID string) int {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Shutdown stops the janitor and closes every connection in every
// session. Pending waiters are left to time out on their own.
func (r *Registry) Shutdown() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.sessions.IterCb(func(sessionID string, s *state) {
		s.mu.Lock()
		conns := make([]Conn, 0, len(s.members))
		for _, c := range s.members {
			conns = append(conns, c)
		}
		s.members = make(map[string]Conn)
		s.mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
}

func (r *Registry) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			if n := r.evictIdle(now); n > 0 {
				log.Debug().Int("evicted", n).Msg("reaped idle sessions")
			}
		}
	}
}

// evictIdle removes sessions that have had no members, no waiters, and
// no activity for longer than the idle eviction TTL. The removal
// callback rechecks idleness so a session revived between the scan and
// the removal survives, and marks the removed state dead so a
// lockState in flight re-resolves instead of mutating the orphan.
func (r *Registry) evictIdle(now time.Time) int {
	var candidates []string
	r.sessions.IterCb(func(sessionID string, s *state) {
		s.mu.Lock()
		idle := len(s.members) == 0 && len(s.waiters) == 0 &&
			now.Sub(s.lastUsed) > r.opts.IdleEviction
		s.mu.Unlock()
		if idle {
			candidates = append(candidates, sessionID)
		}
	})

	evicted := 0
	for _, sessionID := range candidates {
		removed := r.sessions.RemoveCb(sessionID, func(_ string, s *state, exists bool) bool {
			if !exists {
				return false
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if len(s.members) > 0 || len(s.waiters) > 0 ||
				now.Sub(s.lastUsed) <= r.opts.IdleEviction {
				return false
			}
			s.dead = true
			return true
		})
		if removed {
			evicted++
		}
	}
	return evicted
}
