package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultSaveDelay is the quiet period before a scheduled snapshot is written.
const DefaultSaveDelay = time.Second

// Gate debounces and serializes the writes of one project.
//
// Schedule never blocks: it replaces the pending snapshot (single slot) and
// re-arms the timer. When the timer fires, a worker goroutine writes the most
// recent snapshot. A failed write is logged and reported, and the snapshot
// stays pending so the next write carries the latest state.
type Gate struct {
	store    ports.ProjectStore
	clock    ports.Clock
	delay    time.Duration
	logger   *slog.Logger
	notifier ports.Notifier
	hooks    domain.LifecycleHooks

	mu      sync.Mutex
	pending []byte
	timer   ports.Timer
	closed  bool

	// writeMu serializes writes between the worker and Flush.
	writeMu    sync.Mutex
	base       domain.Project
	revision   atomic.Int64
	persisting atomic.Bool
	failures   atomic.Int64

	kick      chan struct{}
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

// Option configures a Gate.
type Option func(*Gate)

// WithSaveDelay sets the quiet period before a write.
func WithSaveDelay(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.delay = d
		}
	}
}

// WithClock replaces the timer source.
func WithClock(c ports.Clock) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithNotifier configures where failed writes are reported to the user.
func WithNotifier(n ports.Notifier) Option {
	return func(g *Gate) {
		if n != nil {
			g.notifier = n
		}
	}
}

// WithLifecycleHooks registers an OnPersist callback (other hooks are ignored).
func WithLifecycleHooks(h domain.LifecycleHooks) Option {
	return func(g *Gate) {
		g.hooks = g.hooks.Merge(domain.LifecycleHooks{OnPersist: h.OnPersist})
	}
}

// NewGate starts a gate writing to store. project is the record being edited:
// its identity, name and metadata are carried into every write and its
// revision is the starting point of the counter.
func NewGate(store ports.ProjectStore, project *domain.Project, opts ...Option) *Gate {
	if project == nil {
		project = domain.NewProject(domain.NewID(), "")
	}
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gate{
		store:    store,
		clock:    ports.SystemClock,
		delay:    DefaultSaveDelay,
		logger:   logging.NewNop(),
		notifier: ports.NotifierFunc(func(context.Context, domain.Notice) {}),
		base:     *project,
		kick:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	g.base.Metadata = maps.Clone(project.Metadata)
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("project_id", g.base.ID)
	g.revision.Store(project.Revision)

	go g.run()
	return g
}

// Schedule queues snapshot for writing, replacing any snapshot not yet written.
func (g *Gate) Schedule(snapshot []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		g.logger.Warn("snapshot dropped: gate closed")
		return
	}
	g.pending = snapshot
	if g.timer != nil {
		g.timer.Stop()
	}
	g.timer = g.clock.AfterFunc(g.delay, g.signal)
}

// Flush writes the pending snapshot now, if there is one.
func (g *Gate) Flush(ctx context.Context) error {
	g.mu.Lock()
	g.stopTimer()
	g.mu.Unlock()
	return g.write(ctx)
}

// Persisting reports whether a write is in flight.
func (g *Gate) Persisting() bool {
	return g.persisting.Load()
}

// Pending reports whether a snapshot is waiting to be written.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Revision returns the revision of the last successful write.
func (g *Gate) Revision() int64 {
	return g.revision.Load()
}

// Failures counts failed writes since the gate started.
func (g *Gate) Failures() int64 {
	return g.failures.Load()
}

// Close cancels the timer, stops the worker and writes the last pending
// snapshot. Later calls return nil.
func (g *Gate) Close(ctx context.Context) error {
	var err error
	g.closeOnce.Do(func() {
		g.mu.Lock()
		g.closed = true
		g.stopTimer()
		g.mu.Unlock()

		close(g.quit)
		<-g.stopped
		err = g.write(ctx)
		g.cancel()
	})
	return err
}

// signal runs on the timer goroutine and only wakes the worker.
func (g *Gate) signal() {
	select {
	case g.kick <- struct{}{}:
	default:
	}
}

func (g *Gate) run() {
	defer close(g.stopped)
	for {
		select {
		case <-g.kick:
			_ = g.write(g.ctx)
		case <-g.quit:
			return
		}
	}
}

// stopTimer must be called with mu held.
func (g *Gate) stopTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Gate) write(ctx context.Context) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.mu.Lock()
	snapshot := g.pending
	g.pending = nil
	g.mu.Unlock()
	if snapshot == nil {
		return nil
	}

	g.persisting.Store(true)
	defer g.persisting.Store(false)

	record := g.base
	record.Metadata = maps.Clone(g.base.Metadata)
	record.Tree = snapshot
	record.Revision = g.revision.Load() + 1
	record.UpdatedAt = g.clock.Now().UTC()

	start := time.Now()
	err := g.store.Save(ctx, &record)
	elapsed := time.Since(start)

	if err != nil {
		g.mu.Lock()
		if g.pending == nil {
			g.pending = snapshot
		}
		g.mu.Unlock()
		g.failures.Add(1)
		err = fmt.Errorf("save project %q: %w", record.ID, err)
		g.logger.Error("save failed", "err", err, "revision", record.Revision)
		g.notifier.Notify(ctx, domain.Notice{Level: domain.NoticeError, Message: "Could not save the page. Your changes are kept and will be retried."})
	} else {
		g.revision.Store(record.Revision)
		g.base.Tree = snapshot
		g.base.UpdatedAt = record.UpdatedAt
		g.logger.Debug("project saved", "revision", record.Revision, "bytes", len(snapshot), "duration", elapsed)
	}

	if g.hooks.OnPersist != nil {
		g.hooks.OnPersist(ctx, &domain.PersistEvent{
			EventBase: domain.EventBase{Timestamp: record.UpdatedAt, Type: domain.EventPersist, ProjectID: record.ID},
			Revision:  record.Revision,
			Bytes:     len(snapshot),
			Duration:  elapsed,
			Err:       err,
		})
	}
	return err
}
