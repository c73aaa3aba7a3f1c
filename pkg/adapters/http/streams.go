package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
)

// AllNodes subscribes to changes of every node.
const AllNodes = "*"

// Change is the payload streamed when a node's value changes.
type Change struct {
	Node   string             `json:"node"`
	Failed bool               `json:"failed"`
	Kind   domain.FailureKind `json:"kind,omitempty"`
	// Reload is set when the mount configuration was reloaded and every
	// root became dirty.
	Reload bool `json:"reload,omitempty"`
}

// StreamManager fans value-changed notifications out to SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // node id -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a channel for topic (a node id or AllNodes). The
// returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(topic string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of node and of AllNodes.
// Slow clients drop messages rather than block evaluation.
func (sm *StreamManager) Broadcast(node, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	topics := []string{node, AllNodes}
	if node == AllNodes {
		topics = topics[:1]
	}
	for _, topic := range topics {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- msg:
			default:
				sm.logger.Warn("SSE: client buffer full, dropping message", "node", node)
			}
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every value change.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnValueChanged: func(_ context.Context, e *domain.EvalEvent) {
			c := Change{Node: e.NodeID}
			if e.Output.Failed() {
				c.Failed = true
				c.Kind = e.Output.Failure.Kind
			}
			data, err := json.Marshal(c)
			if err != nil {
				return
			}
			sm.Broadcast(e.NodeID, string(data))
		},
	}
}

// NotifyReload tells every subscriber that the scene was reloaded.
func (sm *StreamManager) NotifyReload() {
	data, _ := json.Marshal(Change{Node: AllNodes, Reload: true})
	sm.Broadcast(AllNodes, string(data))
}

// SubscribeEvents handles GET /events (SSE). ?node=<id> narrows the stream
// to one node.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("node")
	if topic == "" {
		topic = AllNodes
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(topic)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "node", topic)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
