package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func TestHub_StreamsBusEvents(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4)}
	hub := NewHub(bus, Config{Account: "0xabc", StartedAt: time.Unix(1_700_000_000, 0)},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var hello envelope
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)
	assert.JSONEq(t, `{"account":"0xabc","channels":["positions"],"startedAt":1700000000}`, string(hello.Payload))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, domain.ChannelPositions, []byte(`{"event":"position_exercised","position_id":"p1"}`)))
	bus.ch <- []byte("not json")

	var evt envelope
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, domain.ChannelPositions, evt.Type)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "position_exercised", payload["event"])

	// A dropped frame does not stop the stream.
	require.NoError(t, bus.Publish(ctx, domain.ChannelPositions, []byte(`{"event":"field_disclosed"}`)))
	require.NoError(t, conn.ReadJSON(&evt))
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "field_disclosed", payload["event"])
}

func TestHub_Greeting(t *testing.T) {
	hub := NewHub(&chanBus{ch: make(chan []byte)}, Config{
		Channels: []string{"positions", "alerts"},
		Account:  "0xdef",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	frame, err := hub.greeting()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	assert.Equal(t, "hello", env.Type)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "0xdef", payload["account"])
	assert.Equal(t, []any{"positions", "alerts"}, payload["channels"])
}
