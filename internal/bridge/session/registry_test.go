package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records frames and can be configured to fail sends.
type fakeConn struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if c.closed {
		return ErrConnClosed
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) failNext() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = ErrChannelFailed
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *fakeConn) frameAt(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestConnectDisconnect(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()

	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")

	reg.Connect("s1", c1)
	reg.Connect("s1", c2)
	assert.Equal(t, 2, reg.MemberCount("s1"))
	assert.Equal(t, 1, reg.SessionCount())

	reg.Disconnect("s1", "c1")
	assert.Equal(t, 1, reg.MemberCount("s1"))
	assert.True(t, c1.isClosed())

	// idempotent: repeated and unknown disconnects are no-ops
	reg.Disconnect("s1", "c1")
	reg.Disconnect("s1", "never-connected")
	reg.Disconnect("no-such-session", "c1")
	assert.Equal(t, 1, reg.MemberCount("s1"))
}

func TestBroadcastPartialFailure(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()

	good1 := newFakeConn("good1")
	bad := newFakeConn("bad")
	good2 := newFakeConn("good2")
	reg.Connect("s1", good1)
	reg.Connect("s1", bad)
	reg.Connect("s1", good2)
	bad.failNext()

	result := reg.BroadcastToSession(context.Background(), "s1", []byte(`{"type":"CHART_UPDATE"}`))

	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, []string{"bad"}, result.Dropped)
	assert.Equal(t, 1, good1.frameCount())
	assert.Equal(t, 1, good2.frameCount())

	// the failing member is disconnected as a side effect
	assert.Equal(t, 2, reg.MemberCount("s1"))
	assert.True(t, bad.isClosed())
}

func TestBroadcastEmptySession(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()

	result := reg.BroadcastToSession(context.Background(), "nobody-home", []byte(`{}`))
	assert.Equal(t, 0, result.Delivered)
	assert.Empty(t, result.Dropped)
}

func TestHandleInbound(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()
	ctx := context.Background()

	assert.True(t, reg.CachedSample("s1").IsNil())

	reg.HandleInbound(ctx, "s1", []byte(`{"type":"DATA_SAMPLE_RESPONSE","payload":{"rows":[1,2,3]}}`))
	sample := reg.CachedSample("s1")
	require.False(t, sample.IsNil())
	assert.JSONEq(t, `{"rows":[1,2,3]}`, string(sample.Raw()))

	// later replies overwrite the cache
	reg.HandleInbound(ctx, "s1", []byte(`{"type":"DATA_SAMPLE_RESPONSE","payload":{"rows":[]}}`))
	assert.JSONEq(t, `{"rows":[]}`, string(reg.CachedSample("s1").Raw()))

	// unrecognized types are ignored
	reg.HandleInbound(ctx, "s1", []byte(`{"type":"SOMETHING_ELSE","payload":{"x":1}}`))
	assert.JSONEq(t, `{"rows":[]}`, string(reg.CachedSample("s1").Raw()))

	// a reply without a payload clears the cached value
	reg.HandleInbound(ctx, "s1", []byte(`{"type":"DATA_SAMPLE_RESPONSE"}`))
	assert.True(t, reg.CachedSample("s1").IsNil())
}

func TestDisconnectRacesBroadcast(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()

	conns := make([]*fakeConn, 16)
	for i := range conns {
		conns[i] = newFakeConn(string(rune('a' + i)))
		reg.Connect("s1", conns[i])
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			reg.BroadcastToSession(context.Background(), "s1", []byte(`{"type":"CHART_UPDATE"}`))
		}
	}()
	go func() {
		defer wg.Done()
		for _, c := range conns {
			reg.Disconnect("s1", c.ID())
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, reg.MemberCount("s1"))
	for _, c := range conns {
		assert.True(t, c.isClosed())
	}
}

func TestIdleEviction(t *testing.T) {
	reg := NewRegistry(Options{
		IdleEviction:     20 * time.Millisecond,
		EvictionInterval: 5 * time.Millisecond,
	})
	defer reg.Shutdown()
	ctx := context.Background()

	// a session holding only a cached sample is reaped once idle
	reg.HandleInbound(ctx, "idle", []byte(`{"type":"DATA_SAMPLE_RESPONSE","payload":{"x":1}}`))
	require.Eventually(t, func() bool {
		return reg.SessionCount() == 0
	}, time.Second, 5*time.Millisecond)
	assert.True(t, reg.CachedSample("idle").IsNil())

	// a session with a live member survives
	reg.Connect("busy", newFakeConn("c1"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, reg.SessionCount())
	assert.Equal(t, 1, reg.MemberCount("busy"))
}

func TestEvictionRacesConnect(t *testing.T) {
	// a long interval keeps the janitor out of the way; the sweeps run
	// directly, racing Connect for idle-eligible sessions
	reg := NewRegistry(Options{
		IdleEviction:     time.Nanosecond,
		EvictionInterval: time.Hour,
	})
	defer reg.Shutdown()
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		sessionID := fmt.Sprintf("race-%d", i)
		reg.HandleInbound(ctx, sessionID, []byte(`{"type":"DATA_SAMPLE_RESPONSE","payload":{"n":1}}`))
		conn := newFakeConn("c1")
		deadline := time.Now().Add(time.Second)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			reg.evictIdle(deadline)
		}()
		go func() {
			defer wg.Done()
			reg.Connect(sessionID, conn)
		}()
		wg.Wait()

		// whichever side won, the connection must be visible to
		// broadcasts afterwards
		require.Equal(t, 1, reg.MemberCount(sessionID))
		result := reg.BroadcastToSession(ctx, sessionID, []byte(`{"type":"CHART_UPDATE"}`))
		require.Equal(t, 1, result.Delivered, "session %s", sessionID)
		reg.Disconnect(sessionID, "c1")
	}
}
