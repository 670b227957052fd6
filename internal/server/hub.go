package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// Hub fans intelligence updates out to connected websocket clients. A
// slow client drops updates rather than stalling the broadcast; a dead
// one is reaped when its read loop returns.
type Hub struct {
	log         zerolog.Logger
	initPayload func() interface{}

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. initPayload builds the state pushed to every
// client on connect.
func NewHub(log zerolog.Logger, initPayload func() interface{}) *Hub {
	return &Hub{
		log:         log.With().Str("component", "ws").Logger(),
		initPayload: initPayload,
		clients:     make(map[*wsClient]struct{}),
	}
}

// HandleWS handles GET /ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info().Int("clients", total).Msg("Websocket client connected")

	if init, err := json.Marshal(h.initPayload()); err == nil {
		client.send <- init
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump(ctx)
	h.readLoop(ctx, client)

	h.mu.Lock()
	delete(h.clients, client)
	total = len(h.clients)
	h.mu.Unlock()
	close(client.send)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info().Int("clients", total).Msg("Websocket client disconnected")
}

// readLoop consumes client frames until the connection dies. The only
// recognized inbound message is the text "ping".
func (h *Hub) readLoop(ctx context.Context, client *wsClient) {
	for {
		msgType, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType == websocket.MessageText && string(data) == "ping" {
			select {
			case client.send <- []byte("pong"):
			default:
			}
		}
	}
}

// writePump serializes all writes to one connection.
func (c *wsClient) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Broadcast marshals v once and enqueues it to every connected client.
// Clients whose buffers are full miss this update and catch the next.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error().Err(err).Msg("Broadcast marshal failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll drops every client. Pending writes are abandoned.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
