package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ventortech/merpwms/internal/wave"
)

// EventMessage is the frame pushed to clients for each batch event
type EventMessage struct {
	Type  string     `json:"type"`
	Event wave.Event `json:"event"`
}

const msgBatchEvent = "BATCH_EVENT"

type outbound struct {
	batchID int64
	payload []byte
}

// Hub maintains the set of active clients and broadcasts batch events
type Hub struct {
	clients map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	broadcast chan outbound

	// Closed when Run returns
	done chan struct{}

	log zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 64),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "ws").Logger(),
	}
}

// Run starts the hub's main loop. It closes every connection when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.log.Debug().Str("client", client.ID).Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.log.Debug().Str("client", client.ID).Msg("client disconnected")
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(msg.batchID) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// Slow consumer
					delete(h.clients, client)
					close(client.send)
					h.log.Warn().Str("client", client.ID).Msg("dropping slow client")
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// join registers a client. It reports false once the hub has stopped.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters a client unless the hub has stopped
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish pushes a batch event to subscribed clients. Hub is a
// wave.Notifier; it never blocks the caller.
func (h *Hub) Publish(_ context.Context, ev wave.Event) {
	payload, err := json.Marshal(EventMessage{Type: msgBatchEvent, Event: ev})
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case h.broadcast <- outbound{batchID: ev.BatchID, payload: payload}:
	default:
		h.log.Warn().Str("event", ev.Type).Int64("batch_id", ev.BatchID).Msg("broadcast queue full, event dropped")
	}
}
