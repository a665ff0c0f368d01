package websocket

import (
	"context"
	"sync"

	"ai-plugin-engine/internal/pkg/logger"
	"ai-plugin-engine/pkg/stream"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const clusterChannel = "plugin-engine:collaboration-events"

// Hub fans collaboration stream events out to watchers of a session. Events
// are relayed through Redis so a watcher may sit on any replica.
type Hub struct {
	// session id -> watching clients
	watchers map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb      redis.UniversalClient
	instance string
	done     chan struct{}

	logger logger.ILogger
}

type clusterMessage struct {
	Origin    string              `json:"origin"`
	SessionId uuid.UUID           `json:"sessionId"`
	Terminal  bool                `json:"terminal"`
	Event     jsoniter.RawMessage `json:"event"`
}

func NewHub(rdb redis.UniversalClient, log logger.ILogger) *Hub {
	return &Hub{
		watchers:   make(map[uuid.UUID][]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		instance:   uuid.NewString(),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations until ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.watchers[client.SessionId] = append(h.watchers[client.SessionId], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"session": client.SessionId.String()})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.watchers[client.SessionId]
	for i, c := range clients {
		if c == client {
			h.watchers[client.SessionId] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.watchers[client.SessionId]) == 0 {
		delete(h.watchers, client.SessionId)
	}
}

// Watchers reports how many local clients follow the session.
func (h *Hub) Watchers(sessionId uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[sessionId])
}

// Observer returns a stream.Tee observer publishing the session's events.
func (h *Hub) Observer(sessionId uuid.UUID) func(ev stream.Event) {
	return func(ev stream.Event) {
		h.Publish(sessionId, ev)
	}
}

// Publish delivers ev to local watchers and to the other replicas. It never
// blocks the producing stream.
func (h *Hub) Publish(sessionId uuid.UUID, ev stream.Event) {
	data, err := stream.Encode(ev)
	if err != nil {
		h.logger.Error("Hub", "Failed to encode event", map[string]interface{}{"error": err.Error()})
		return
	}
	terminal := ev.Kind.Terminal()
	h.deliver(sessionId, data, terminal)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.instance, SessionId: sessionId, Terminal: terminal, Event: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to relay event", map[string]interface{}{"error": err.Error()})
		}
	}
}

// deliver hands data to local watchers. Watchers with a full buffer are
// dropped; after a terminal event every watcher of the session is released.
func (h *Hub) deliver(sessionId uuid.UUID, data []byte, terminal bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.watchers[sessionId] {
		select {
		case client.Send <- data:
			if !terminal {
				continue
			}
		default:
			h.logger.Warn("Hub", "Watcher too slow, disconnecting", map[string]interface{}{"session": sessionId.String()})
		}
		go h.release(client)
	}
}

func (h *Hub) release(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Malformed cluster message", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.instance {
			continue
		}
		h.deliver(payload.SessionId, payload.Event, payload.Terminal)
	}
}
