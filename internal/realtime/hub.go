package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"livemarket/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max subscribers on one channel.
	maxConnsPerChannel = 5000
	// Max total connections
	maxTotalConns = 20000
)

var (
	ErrHubFull     = errors.New("server connection limit reached")
	ErrChannelFull = errors.New("channel connection limit reached")
	ErrHubClosed   = errors.New("hub is shutting down")
)

// Hub maps channel names to the websocket clients following them. It is
// fed either by a broker subscription (StartWiring) or directly as a
// Publisher when no broker fan-in is available.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]map[*Client]struct{}
	totalConns int
	closed     bool
	log        *observability.WSLogger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns: make(map[string]map[*Client]struct{}),
		log:   observability.NewWSLogger("room feed hub"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "room feed hub" }

func feedLabel(channel string) string {
	if channel == GlobalChannel {
		return "global"
	}
	return "room"
}

// Register attaches conn to channel. Returns an error if limits are exceeded.
func (h *Hub) Register(channel string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrHubFull
	}

	m, ok := h.conns[channel]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[channel] = m
	}
	if len(m) >= maxConnsPerChannel {
		h.mu.Unlock()
		return nil, ErrChannelFull
	}

	client := newClient(h, conn, channel)
	m[client] = struct{}{}
	h.totalConns++
	count := len(m)
	h.mu.Unlock()

	observability.WebSocketSubscribers.WithLabelValues(feedLabel(channel)).Inc()
	h.log.LogConnect(context.Background(), channel, count)
	return client, nil
}

// UnregisterClient detaches client and closes its send buffer. Safe to call twice.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.Channel]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
			close(client.Send)
		}
		if len(m) == 0 {
			delete(h.conns, client.Channel)
		}
	}
	h.mu.Unlock()

	if removed {
		observability.WebSocketSubscribers.WithLabelValues(feedLabel(client.Channel)).Dec()
	}
}

// Subscribers reports how many clients follow channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[channel])
}

// Dispatch sends payload to every client on channel.
func (h *Hub) Dispatch(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[channel] {
		c.TrySend(payload)
	}
}

// Publish delivers env to local subscribers, so the hub can stand in for a
// broker on a single instance.
func (h *Hub) Publish(_ context.Context, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	h.Dispatch(channel, data)
	return nil
}

// StartWiring subscribes to the Redis room channels and forwards every
// message to the matching local subscribers.
func (h *Hub) StartWiring(ctx context.Context, p *RedisPublisher) error {
	return p.StartSubscriber(ctx, func(channel, payload string) {
		if channel != GlobalChannel {
			if _, ok := RoomIDFromChannel(channel); !ok {
				h.log.LogError(ctx, channel, errors.New("unexpected channel"), "subscribe")
				return
			}
		}
		h.Dispatch(channel, []byte(payload))
	})
}

// Shutdown closes every subscriber's send buffer. Each WritePump then sends
// a going-away frame and closes its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	for channel, clients := range conns {
		for client := range clients {
			observability.WebSocketSubscribers.WithLabelValues(feedLabel(channel)).Dec()
			close(client.Send)
		}
	}
	return nil
}
