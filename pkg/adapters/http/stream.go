package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Event types carried to subscribers.
const (
	EventFrame  = "frame"
	EventNotice = "notice"
	EventResult = "result"
)

// Event is the envelope pushed to SSE and WebSocket clients.
type Event struct {
	Type   string         `json:"type"`
	Frame  *domain.Frame  `json:"frame,omitempty"`
	Notice *domain.Notice `json:"notice,omitempty"`
	Result *bridge.Result `json:"result,omitempty"`
}

const subscriberBuffer = 32

// StreamManager fans session output out to the clients of each project.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{} // ProjectID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan []byte]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a client of projectID. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(projectID string) (<-chan []byte, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if _, ok := sm.subscribers[projectID]; !ok {
		sm.subscribers[projectID] = make(map[chan []byte]struct{})
	}
	sm.subscribers[projectID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[projectID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, projectID)
				}
			}
		})
	}
}

// Subscribers reports how many clients follow projectID.
func (sm *StreamManager) Subscribers(projectID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[projectID])
}

// Broadcast sends ev to every client of projectID. It never blocks: a client
// whose buffer is full misses the event.
func (sm *StreamManager) Broadcast(projectID string, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("event encode failed", "err", err)
		return
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers[projectID] {
		sm.deliver(projectID, ch, ev.Type, msg)
	}
}

// Send delivers ev to the single client that owns sub, in order with the
// broadcasts it receives. It reports false when sub is no longer subscribed.
func (sm *StreamManager) Send(projectID string, sub <-chan []byte, ev Event) bool {
	msg, err := json.Marshal(ev)
	if err != nil {
		sm.logger.Error("event encode failed", "err", err)
		return false
	}

	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers[projectID] {
		if (<-chan []byte)(ch) == sub {
			sm.deliver(projectID, ch, ev.Type, msg)
			return true
		}
	}
	return false
}

func (sm *StreamManager) deliver(projectID string, ch chan []byte, eventType string, msg []byte) {
	select {
	case ch <- msg:
	default:
		// Drop message if channel is full (slow client)
		sm.logger.Warn("client buffer full, dropping event", "project_id", projectID, "type", eventType)
	}
}

// Surface returns the rendering surface of projectID: frames and notices
// produced by its session are broadcast to the project's clients.
func (sm *StreamManager) Surface(projectID string) *ProjectSurface {
	return &ProjectSurface{projectID: projectID, streams: sm}
}

// ProjectSurface implements ports.Surface and ports.Notifier on top of a
// StreamManager.
type ProjectSurface struct {
	projectID string
	streams   *StreamManager
}

// Render broadcasts a frame.
func (p *ProjectSurface) Render(_ context.Context, frame domain.Frame) error {
	p.streams.Broadcast(p.projectID, Event{Type: EventFrame, Frame: &frame})
	return nil
}

// Notify broadcasts a notice.
func (p *ProjectSurface) Notify(_ context.Context, notice domain.Notice) {
	p.streams.Broadcast(p.projectID, Event{Type: EventNotice, Notice: &notice})
}

// SubscribeEvents handles the GET /projects/{id}/events request (SSE).
// The session stays open while at least one client is connected.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}
	projectID := chi.URLParam(r, "id")

	ch, cancel := s.Streams.Subscribe(projectID)
	defer cancel()

	ctx := r.Context()
	sess, err := s.Studio.Open(ctx, projectID, s.Streams.Surface(projectID))
	if err != nil {
		writeError(w, statusOf(bridge.Code(err)), err)
		return
	}
	defer func() {
		if err := s.Studio.Release(context.WithoutCancel(ctx), sess); err != nil {
			s.logger.Error("session release failed", "project_id", projectID, "err", err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: client subscribed", "project_id", projectID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SSE: client disconnected", "project_id", projectID)
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
