package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/logging"
)

// upgrader accepts any origin; this runtime has no authentication layer
// and is expected to sit behind a trusted LAN/localhost boundary.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connHub fans binary frames out to every subscribed WebSocket client. It
// implements stages.Broadcaster, so a websocket_sink stage can push frames
// into it without this package or that one depending on the other's
// concrete types.
//
// Grounded on the connection-manager shape in
// other_examples' telemetry-server main.go (one upgrader, one hub, per-
// connection buffered channel), generalized with the same drop-oldest
// back-pressure policy internal/control.EventBus uses.
type connHub struct {
	log *logging.Logger

	mu    sync.Mutex
	conns map[chan []byte]struct{}
}

func newConnHub(log *logging.Logger) *connHub {
	return &connHub{log: log, conns: make(map[chan []byte]struct{})}
}

// Broadcast implements stages.Broadcaster.
func (h *connHub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.conns {
		select {
		case ch <- frame:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

func (h *connHub) subscribe() chan []byte {
	ch := make(chan []byte, constants.ConnectionSendBufferCapacity)
	h.mu.Lock()
	h.conns[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *connHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[ch]; ok {
		delete(h.conns, ch)
		close(ch)
	}
}

// ServeHTTP upgrades the request to a WebSocket and streams every
// broadcast frame to it until the connection closes.
func (h *connHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	closed := make(chan struct{})
	// Drain and discard client reads so a dead TCP connection is detected
	// (gorilla/websocket requires a reader goroutine to process control
	// frames); this hub is send-only from the server's side. Closing
	// `closed` (rather than ch, which only subscribe/unsubscribe touch)
	// is what unblocks the write loop below on a dead connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}
