package ws

import (
	"encoding/json"
	"sync"

	"github.com/Fallenproud/create.xyzdashboard/internal/domain"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Event is the envelope written to every stream subscriber.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventDeployment = "deployment"
	EventPresence   = "presence"
)

// DeploymentTopic names the stream carrying a project's deployment updates.
func DeploymentTopic(projectID string) string { return "deployments:" + projectID }

// PresenceTopic names the stream carrying a project's online users.
func PresenceTopic(projectID string) string { return "presence:" + projectID }

// Hub fans out events to subscribers grouped by topic.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	done      chan struct{}
	closeOnce sync.Once
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
	ack    chan struct{}
}

// NewHub creates an initialized Hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 64),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for topic, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]struct{})
			}
			h.clients[sub.topic][sub.client] = struct{}{}
			h.mu.Unlock()
			close(sub.ack)
		case sub := <-h.unreg:
			h.mu.Lock()
			if clients, ok := h.clients[sub.topic]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.topic)
				}
			}
			h.mu.Unlock()
			close(sub.ack)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.clients[msg.topic]
	if !ok {
		return
	}
	for c := range clients {
		if err := c.Send(msg.payload); err != nil {
			c.Close()
			delete(clients, c)
		}
	}
	if len(clients) == 0 {
		delete(h.clients, msg.topic)
	}
}

// Register adds a client to a topic. It returns once the client is visible
// to subsequent broadcasts.
func (h *Hub) Register(topic string, client Subscriber) {
	h.send(h.register, subscription{topic: topic, client: client, ack: make(chan struct{})})
}

// Unregister removes a client.
func (h *Hub) Unregister(topic string, client Subscriber) {
	h.send(h.unreg, subscription{topic: topic, client: client, ack: make(chan struct{})})
}

func (h *Hub) send(ch chan subscription, sub subscription) {
	select {
	case ch <- sub:
	case <-h.done:
		return
	}
	select {
	case <-sub.ack:
	case <-h.done:
	}
}

// Broadcast sends payload to all topic clients.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Publish encodes an event and broadcasts it.
func (h *Hub) Publish(topic, eventType string, data any) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	h.Broadcast(topic, payload)
	return nil
}

// Subscribers reports how many clients are attached to topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Close stops the dispatch loop and closes every attached client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// DeploymentUpdated publishes a deployment change to its project's stream.
func (h *Hub) DeploymentUpdated(deployment domain.Deployment) {
	_ = h.Publish(DeploymentTopic(deployment.ProjectID), EventDeployment, deployment)
}

// PresenceChanged publishes the online user list to its project's stream.
func (h *Hub) PresenceChanged(projectID string, online []domain.User) {
	if online == nil {
		online = []domain.User{}
	}
	_ = h.Publish(PresenceTopic(projectID), EventPresence, online)
}
