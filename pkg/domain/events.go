package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMutation EventType = "mutation"
	EventRender   EventType = "render"
	EventPersist  EventType = "persist"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	ProjectID string    `json:"project_id"`
}

// MutationEvent reports an applied (or rejected) document change.
type MutationEvent struct {
	EventBase
	Op      string    `json:"op"`
	NodeIDs []string  `json:"node_ids,omitempty"`
	Diff    *TreeDiff `json:"diff,omitempty"`
	Err     error     `json:"-"`
}

// RenderEvent reports a frame delivered to the rendering surface.
type RenderEvent struct {
	EventBase
	Seq       uint64        `json:"seq"`
	Debounced bool          `json:"debounced"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"duration"`
	Err       error         `json:"-"`
}

// PersistEvent reports a completed write of a project snapshot.
type PersistEvent struct {
	EventBase
	Revision int64         `json:"revision"`
	Bytes    int           `json:"bytes"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for session observability.
// Every field is optional.
type LifecycleHooks struct {
	OnMutation func(context.Context, *MutationEvent)
	OnRender   func(context.Context, *RenderEvent)
	OnPersist  func(context.Context, *PersistEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnMutation: chain(h.OnMutation, other.OnMutation),
		OnRender:   chain(h.OnRender, other.OnRender),
		OnPersist:  chain(h.OnPersist, other.OnPersist),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
