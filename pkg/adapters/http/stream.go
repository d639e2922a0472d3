package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/stategraph/internal/logging"
	"github.com/aretw0/stategraph/pkg/domain"
)

// allRuns is the topic receiving the events of every run.
const allRuns = "*"

// StreamManager fans run events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // run ID (or allRuns) -> channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a channel for topic. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(topic string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 16)
	if _, ok := sm.subscribers[topic]; !ok {
		sm.subscribers[topic] = make(map[chan<- string]struct{})
	}
	sm.subscribers[topic][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[topic]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, topic)
			}
		}
	}
}

// Broadcast sends msg to the subscribers of runID and of every run.
func (sm *StreamManager) Broadcast(runID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, topic := range []string{runID, allRuns} {
		for ch := range sm.subscribers[topic] {
			select {
			case ch <- msg:
			default:
				// Drop the message for slow clients.
				sm.logger.Warn("SSE: client buffer full, dropping message", "run_id", runID)
			}
		}
	}
}

type streamEvent struct {
	Type domain.EventType `json:"type"`
	Data any              `json:"data"`
	Err  string           `json:"error,omitempty"`
}

func (sm *StreamManager) publish(runID string, t domain.EventType, data any, err error) {
	ev := streamEvent{Type: t, Data: data}
	if err != nil {
		ev.Err = err.Error()
	}
	b, mErr := json.Marshal(ev)
	if mErr != nil {
		sm.logger.Error("SSE: encode event failed", "error", mErr)
		return
	}
	sm.Broadcast(runID, string(b))
}

// Hooks returns lifecycle hooks that publish every event.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			sm.publish(e.RunID, e.Type, e, nil)
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			sm.publish(e.RunID, e.Type, e, e.Err)
		},
		OnBranch: func(_ context.Context, e *domain.BranchEvent) {
			sm.publish(e.RunID, e.Type, e, nil)
		},
		OnToolCall: func(_ context.Context, e *domain.ToolEvent) {
			sm.publish(e.RunID, e.Type, e, nil)
		},
		OnToolReturn: func(_ context.Context, e *domain.ToolEvent) {
			sm.publish(e.RunID, e.Type, e, nil)
		},
		OnRunEnd: func(_ context.Context, e *domain.RunEvent) {
			sm.publish(e.RunID, e.Type, e, e.Err)
		},
	}
}

// SubscribeEvents handles GET /events (SSE). ?run_id= narrows the stream to one run.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	topic := r.URL.Query().Get("run_id")
	if topic == "" {
		topic = allRuns
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(topic)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
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
