package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// Surface is the rendering surface fed by a bridge session.
// Render replaces whatever the surface currently shows.
type Surface interface {
	Render(ctx context.Context, frame domain.Frame) error
}

// SurfaceFunc adapts a function to the Surface interface.
type SurfaceFunc func(ctx context.Context, frame domain.Frame) error

func (f SurfaceFunc) Render(ctx context.Context, frame domain.Frame) error {
	return f(ctx, frame)
}

// Notifier delivers transient user notifications (toasts).
// Implementations must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, notice domain.Notice)

func (f NotifierFunc) Notify(ctx context.Context, notice domain.Notice) {
	f(ctx, notice)
}
