package telemetry

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(h.Handler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	// Registration happens on the server goroutine after the handshake.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, h.ClientCount())

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	conn, done := dialHub(t, h)
	defer done()

	h.BroadcastJSON(map[string]any{"link": "connected"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "connected", msg["link"])
}

func TestHubUnregistersOnClose(t *testing.T) {
	h := NewHub()
	conn, done := dialHub(t, h)
	defer done()

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Zero(t, h.ClientCount())
}

func TestNilPublisherIsInert(t *testing.T) {
	p, err := NewPublisher("", "paddle-bridge", "paddle/events")
	require.NoError(t, err)
	require.Nil(t, p)

	// All methods are safe on the nil Publisher.
	p.PublishLink("connected")
	p.Close()
}
