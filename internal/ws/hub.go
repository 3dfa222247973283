package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Room naming: restaurant rooms carry dashboard traffic, user rooms carry
// per-courier and per-customer traffic.
func RestaurantRoom(restaurantID int64) string {
	return fmt.Sprintf("restaurant_%d", restaurantID)
}

func UserRoom(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// Event is the wire envelope; Data always carries a server timestamp.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func NewEvent(eventType string, data map[string]any) Event {
	if data == nil {
		data = map[string]any{}
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	return Event{Type: eventType, Data: data}
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// Hub is the in-process room registry: write-mostly per connection,
// read-mostly per event. Delivery is at-most-once with no queueing; a failed
// write evicts the connection.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) join(rooms []string, c *client) (leave func()) {
	h.mu.Lock()
	for _, room := range rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = make(map[*client]struct{})
		}
		h.rooms[room][c] = struct{}{}
	}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		for _, room := range rooms {
			members := h.rooms[room]
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) Broadcast(room string, event Event) {
	h.mu.RLock()
	members := h.rooms[room]
	clients := make([]*client, 0, len(members))
	for c := range members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(event); err != nil {
			_ = c.conn.Close()
			h.mu.Lock()
			if current := h.rooms[room]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(h.rooms, room)
				}
			}
			h.mu.Unlock()
		}
	}
}

// RoomSize is used by tests and diagnostics.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
