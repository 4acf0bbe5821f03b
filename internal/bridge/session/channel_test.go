package session

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartbridge/chartbridge/internal/bridge/wire"
)

func newChannelServer(t *testing.T, reg *Registry) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/sessions", func(r chi.Router) {
		Router(r, reg)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialChannel(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionID + "/channel"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestChannelRoundTrip(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()
	cor := NewCorrelator(reg)
	srv := newChannelServer(t, reg)

	ws := dialChannel(t, srv, "s1")
	require.Eventually(t, func() bool {
		return reg.MemberCount("s1") == 1
	}, time.Second, time.Millisecond)

	// the client answers the first sample request it receives
	go func() {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if wire.MessageType(data) != wire.TypeDataSampleRequest {
			return
		}
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"DATA_SAMPLE_RESPONSE","payload":{"rows":[1]}}`))
	}()

	sample, err := cor.RequestSample(context.Background(), "s1", 2*time.Second)
	require.NoError(t, err)
	require.False(t, sample.IsNil())
	assert.JSONEq(t, `{"rows":[1]}`, string(sample.Raw()))
}

func TestChannelDisconnectOnClose(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()
	srv := newChannelServer(t, reg)

	ws := dialChannel(t, srv, "s1")
	require.Eventually(t, func() bool {
		return reg.MemberCount("s1") == 1
	}, time.Second, time.Millisecond)

	ws.Close()
	require.Eventually(t, func() bool {
		return reg.MemberCount("s1") == 0
	}, time.Second, time.Millisecond)
}

func TestChannelBroadcastDelivery(t *testing.T) {
	reg := NewRegistry(Options{})
	defer reg.Shutdown()
	srv := newChannelServer(t, reg)

	ws1 := dialChannel(t, srv, "s1")
	ws2 := dialChannel(t, srv, "s1")
	require.Eventually(t, func() bool {
		return reg.MemberCount("s1") == 2
	}, time.Second, time.Millisecond)

	frame, err := wire.NewChartUpdate(&wire.ChartUpdate{Explanation: "bar chart by region"})
	require.NoError(t, err)
	result := reg.BroadcastToSession(context.Background(), "s1", frame)
	assert.Equal(t, 2, result.Delivered)

	for _, ws := range []*websocket.Conn{ws1, ws2} {
		ws.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, wire.TypeChartUpdate, wire.MessageType(data))
	}
}
