package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe/internal/logging"
)

func TestConnHubBroadcastsToSubscribedWebsocketClient(t *testing.T) {
	hub := newConnHub(logging.NewLogger(logging.DefaultConfig()))
	srv := httptest.NewServer(hub)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine time to register the subscription before
	// broadcasting, since subscribe() happens inside ServeHTTP after the
	// upgrade completes.
	time.Sleep(20 * time.Millisecond)

	hub.Broadcast([]byte("hello"))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestConnHubDropsOldestOnSlowConsumer(t *testing.T) {
	hub := newConnHub(logging.NewLogger(logging.DefaultConfig()))
	ch := hub.subscribe()
	defer hub.unsubscribe(ch)

	for i := 0; i < 64; i++ {
		hub.Broadcast([]byte{byte(i)})
	}

	// The channel never blocks regardless of how far behind the consumer
	// falls; draining it should yield at most its capacity worth of frames.
	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			require.LessOrEqual(t, count, cap(ch))
			return
		}
	}
}
