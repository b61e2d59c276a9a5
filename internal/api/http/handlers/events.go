package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/event"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/site"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// Event topic categories
const (
	TopicContent = "content"
	TopicType    = "type"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EventMessage is one frame of the event feed. Clients send "subscribe"
// and "unsubscribe" messages whose payload is {"topics": [...]}.
type EventMessage struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// EventPayload describes a content or type lifecycle event
type EventPayload struct {
	Kind       string   `json:"kind"`
	Path       string   `json:"path,omitempty"`
	PortalType string   `json:"portal_type,omitempty"`
	UID        string   `json:"uid,omitempty"`
	OldParent  string   `json:"old_parent,omitempty"`
	OldName    string   `json:"old_name,omitempty"`
	NewParent  string   `json:"new_parent,omitempty"`
	NewName    string   `json:"new_name,omitempty"`
	Changed    []string `json:"changed,omitempty"`
}

// eventClient is one websocket connection of the feed
type eventClient struct {
	hub    *EventHub
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]bool
	mu     sync.RWMutex
	log    zerolog.Logger
}

// EventHub fans site events out to websocket clients. A client with no
// subscriptions receives everything; a subscription matches a full topic
// ("content.added") or a category ("content").
type EventHub struct {
	clients    map[*eventClient]bool
	broadcast  chan *EventMessage
	register   chan *eventClient
	unregister chan *eventClient
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewEventHub creates a hub. It delivers nothing until Run is called.
func NewEventHub() *EventHub {
	return &EventHub{
		clients:    make(map[*eventClient]bool),
		broadcast:  make(chan *EventMessage, 256),
		register:   make(chan *eventClient),
		unregister: make(chan *eventClient),
		done:       make(chan struct{}),
		log:        logger.WithComponent("events.hub"),
	}
}

// Attach subscribes the hub to every lifecycle event of s
func (h *EventHub) Attach(s *site.Site) {
	for _, kind := range []event.Kind{event.KindAdded, event.KindModified, event.KindMoved, event.KindRemoved} {
		s.Subscribe(kind, h.Publish)
	}
}

// Run delivers broadcasts until ctx is done, then disconnects every client
func (h *EventHub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", n).Msg("Client unregistered")

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.log.Error().Err(err).Msg("Failed to marshal event message")
				continue
			}

			// Clients whose send buffer is full are dropped
			var slow []*eventClient
			h.mu.RLock()
			for client := range h.clients {
				if !client.subscribed(message.Topic) {
					continue
				}
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// Clients returns the number of connected clients
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for delivery. Messages are dropped when the queue
// is full.
func (h *EventHub) Broadcast(msg *EventMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn().Str("topic", msg.Topic).Msg("Broadcast channel full, dropping message")
	}
}

// Publish is an event handler broadcasting lifecycle events of content
// objects and type descriptors. It never fails the operation that
// raised the event.
func (h *EventHub) Publish(_ context.Context, subject any, ev event.Event) error {
	if h == nil {
		return nil
	}

	payload := EventPayload{Kind: string(ev.Kind())}
	var category string
	switch s := subject.(type) {
	case *content.Content:
		category = TopicContent
		payload.Path = s.PhysicalPath()
		payload.PortalType = s.PortalType()
		payload.UID = s.UID()
	case *fti.Descriptor:
		category = TopicType
		payload.Path = fti.ToolPath + "/" + s.ID()
		payload.PortalType = s.ID()
	default:
		return nil
	}

	switch e := ev.(type) {
	case event.Added:
		payload.NewParent, payload.NewName = e.NewParent, e.NewName
	case event.Removed:
		payload.OldParent, payload.OldName = e.OldParent, e.OldName
	case event.Moved:
		payload.OldParent, payload.OldName = e.OldParent, e.OldName
		payload.NewParent, payload.NewName = e.NewParent, e.NewName
	case event.Modified:
		for _, d := range e.Descriptions {
			payload.Changed = append(payload.Changed, d.Attribute)
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event payload")
		return nil
	}
	h.Broadcast(&EventMessage{
		Type:    "event",
		Topic:   category + "." + payload.Kind,
		Payload: data,
	})
	return nil
}

// ServeEvents upgrades the request to a websocket and streams events
func (h *EventHub) ServeEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	client := &eventClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		topics: make(map[string]bool),
		log:    logger.WithComponent("events.client"),
	}

	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// subscribed reports whether topic matches the client's subscriptions
func (c *eventClient) subscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 || c.topics[topic] {
		return true
	}
	category, _, _ := strings.Cut(topic, ".")
	return c.topics[category]
}

// readPump reads subscription changes until the connection fails
func (c *eventClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("WebSocket error")
			}
			return
		}

		var msg EventMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.handleMessage(&msg)
		}
	}
}

// writePump writes queued events and keepalive pings
func (c *eventClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage applies a subscription change
func (c *eventClient) handleMessage(msg *EventMessage) {
	var payload struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch msg.Type {
	case "subscribe":
		for _, topic := range payload.Topics {
			c.topics[topic] = true
		}
	case "unsubscribe":
		for _, topic := range payload.Topics {
			delete(c.topics, topic)
		}
	default:
		return
	}
	c.log.Debug().Str("type", msg.Type).Strs("topics", payload.Topics).Msg("Subscriptions changed")
}
