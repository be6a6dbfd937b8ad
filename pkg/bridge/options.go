package bridge

import (
	"log/slog"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Option defines a functional option for configuring a Session.
type Option func(*Session)

// WithProjectID tags logs and events with the edited project.
func WithProjectID(id string) Option {
	return func(s *Session) {
		s.projectID = id
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier configures where user-visible failures are reported.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Session) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithPersister configures the sink for serialized snapshots.
func WithPersister(p Persister) Option {
	return func(s *Session) {
		if p != nil {
			s.persister = p
		}
	}
}

// WithPalette configures the template source used by palette drops.
func WithPalette(p ports.PaletteLoader) Option {
	return func(s *Session) {
		s.palette = p
	}
}

// WithClock replaces the timer source (tests use a manual clock).
func WithClock(c ports.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithRenderDelay sets the debounce applied to move renders.
func WithRenderDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = s.hooks.Merge(h)
	}
}

// WithIDGenerator sets the generator for new node ids.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}
