package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"medibot-be/internal/pkg/logger"
)

const clusterChannel = "cluster_events"

// Hub tracks the single live connection per user. A reconnect retires the
// prior connection before the new one is attached. Redis fan-out lets any
// instance deliver to a user connected elsewhere.
type Hub struct {
	// UserId -> live client. One connection per user.
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance delivery
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if prior, ok := h.clients[client.UserId]; ok && prior != client {
				// Retire the stale connection; the new one wins.
				close(prior.Send)
				if prior.Conn != nil {
					prior.Conn.Close()
				}
				h.logger.Info("Hub", "Retired prior connection on reconnect", map[string]interface{}{"user_id": client.UserId})
			}
			h.clients[client.UserId] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserId})

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserId]; ok && current == client {
				delete(h.clients, client.UserId)
				close(client.Send)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"user_id": client.UserId})
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser delivers one payload to the user's live connection, locally or
// through Redis when the user is attached to another instance.
func (h *Hub) SendToUser(userId string, payload []byte) {
	h.mu.RLock()
	client, localFound := h.clients[userId]
	h.mu.RUnlock()

	if localFound {
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": userId})
			h.unregister <- client
		}
		return
	}

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"target_user_id": userId,
			"message":        json.RawMessage(payload),
		})
		h.rdb.Publish(context.Background(), clusterChannel, envelope)
	}
}

// Broadcast delivers one payload to every connected user on every instance.
func (h *Hub) Broadcast(payload []byte) {
	// Unregistering needs the write lock in Run; collect slow clients
	// here and retire them after the read lock is released.
	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()
	for _, client := range slow {
		h.unregister <- client
	}

	if h.rdb != nil {
		envelope, _ := json.Marshal(map[string]interface{}{
			"target_user_id": "*",
			"message":        json.RawMessage(payload),
		})
		h.rdb.Publish(context.Background(), clusterChannel, envelope)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetUserId string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Unreadable cluster event", map[string]interface{}{"error": err.Error()})
			continue
		}

		if payload.TargetUserId == "*" {
			var slow []*Client
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.Send <- payload.Message:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range slow {
				h.unregister <- client
			}
			continue
		}

		h.mu.RLock()
		client, ok := h.clients[payload.TargetUserId]
		h.mu.RUnlock()

		if ok {
			select {
			case client.Send <- payload.Message:
			default:
				h.unregister <- client
			}
		}
	}
}
