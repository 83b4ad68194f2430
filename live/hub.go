// Package live provides the websocket hub that pushes committed match
// results and leaderboard movements to connected clients.
package live

import (
	"encoding/json"
	"log"
	"sync"
)

// FeedRoom is the room every dashboard client joins.
const FeedRoom = "feed"

// Message is the envelope sent to clients.
type Message struct {
	Type    string      `json:"type"` // e.g. "MATCH_CREATED"
	Payload interface{} `json:"payload"`
	Room    string      `json:"room,omitempty"`
}

type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	stop       chan struct{}
	stopOnce   sync.Once

	rooms map[string]map[*Client]bool
	mu    sync.RWMutex
}

type roomMessage struct {
	room string
	data []byte
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, 64),
		stop:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
	}
}

// Run owns the room bookkeeping. It must run in its own goroutine before any
// client connects, and returns once Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.stop:
			h.mu.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					client.closeSend()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.room]; ok {
				if _, okClient := clients[client]; okClient {
					client.closeSend()
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.rooms, client.room)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.rooms[msg.room] {
				select {
				case client.send <- msg.data:
				default:
					// Slow consumer; drop the message rather than block the hub.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the hub down: Run drains its rooms and returns. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// BroadcastToRoom fans a message out to every client in the room. Safe to
// call from any goroutine; never blocks the caller.
func (h *Hub) BroadcastToRoom(room string, payload interface{}) {
	data, err := json.Marshal(Message{Type: messageType(payload), Payload: payload, Room: room})
	if err != nil {
		log.Printf("live: failed to marshal broadcast payload: %v", err)
		return
	}
	select {
	case h.broadcast <- roomMessage{room: room, data: data}:
	default:
		log.Printf("live: broadcast channel full, dropping message for room %s", room)
	}
}

type typed interface {
	MessageType() string
}

func messageType(payload interface{}) string {
	if t, ok := payload.(typed); ok {
		return t.MessageType()
	}
	return "EVENT"
}
