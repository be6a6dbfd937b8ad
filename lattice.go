package lattice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/bridge"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/persistence"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/aretw0/lattice/pkg/session"
)

// Studio is the high-level entry point for the Lattice library.
// It opens editing sessions over stored projects, wiring each one to a
// persistence gate, the palette and the configured observability hooks.
// Sessions are shared and reference counted: opening a project that is
// already open returns the live session.
type Studio struct {
	manager     *session.Manager
	palette     ports.PaletteLoader
	notifier    ports.Notifier
	clock       ports.Clock
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	newID       domain.IDGenerator
	renderDelay time.Duration
	saveDelay   time.Duration
	locker      ports.DistributedLocker

	mu   sync.Mutex
	open map[string]*openSession
}

type openSession struct {
	ready   chan struct{}
	session *bridge.Session
	err     error
	refs    int
}

// holds reports whether the entry is started and serves sess. An entry still
// starting cannot be the one a caller got sess from.
func (e *openSession) holds(sess *bridge.Session) bool {
	select {
	case <-e.ready:
		return e.session == sess
	default:
		return false
	}
}

// Option defines a functional option for configuring the Studio.
type Option func(*Studio)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks on every session.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Studio) {
		s.hooks = s.hooks.Merge(hooks)
	}
}

// WithPalette replaces the built-in palette.
func WithPalette(p ports.PaletteLoader) Option {
	return func(s *Studio) {
		s.palette = p
	}
}

// WithNotifier receives the notices of every session.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Studio) {
		s.notifier = n
	}
}

// WithRenderDelay sets the debounce of move renders.
func WithRenderDelay(d time.Duration) Option {
	return func(s *Studio) {
		s.renderDelay = d
	}
}

// WithSaveDelay sets the quiet period before a save.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Studio) {
		s.saveDelay = d
	}
}

// WithClock replaces the timer source of renders and saves.
func WithClock(c ports.Clock) Option {
	return func(s *Studio) {
		s.clock = c
	}
}

// WithIDGenerator sets the generator for new node ids.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(s *Studio) {
		s.newID = gen
	}
}

// WithLocker enables distributed locking of project records.
func WithLocker(l ports.DistributedLocker) Option {
	return func(s *Studio) {
		s.locker = l
	}
}

// New initializes a Studio over store.
func New(store ports.ProjectStore, opts ...Option) *Studio {
	s := &Studio{
		clock:       ports.SystemClock,
		newID:       domain.NewID,
		renderDelay: bridge.DefaultRenderDelay,
		saveDelay:   persistence.DefaultSaveDelay,
		open:        make(map[string]*openSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.palette == nil {
		s.palette = registry.Builtin()
	}
	s.manager = session.NewManager(store,
		session.WithLocker(s.locker),
		session.WithLogger(s.logger),
	)
	return s
}

// Palette returns the template source used by palette drops.
func (s *Studio) Palette() ports.PaletteLoader {
	return s.palette
}

// Open returns the live session of projectID, creating the project if it does
// not exist. The first Open of a project decides its surface; when the
// surface also implements ports.Notifier it receives the session's notices.
// Every successful Open must be paired with a Release of the returned session.
func (s *Studio) Open(ctx context.Context, projectID string, surface ports.Surface) (*bridge.Session, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: empty project id", domain.ErrProjectNotFound)
	}

	s.mu.Lock()
	entry, ok := s.open[projectID]
	if ok {
		entry.refs++
		s.mu.Unlock()
		<-entry.ready
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.session, nil
	}
	entry = &openSession{ready: make(chan struct{}), refs: 1}
	s.open[projectID] = entry
	s.mu.Unlock()

	entry.session, entry.err = s.start(ctx, projectID, surface)
	close(entry.ready)
	if entry.err != nil {
		s.mu.Lock()
		delete(s.open, projectID)
		s.mu.Unlock()
		return nil, entry.err
	}
	return entry.session, nil
}

func (s *Studio) start(ctx context.Context, projectID string, surface ports.Surface) (*bridge.Session, error) {
	project, err := s.manager.LoadOrCreate(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	tree, err := project.Document(domain.WithIDGenerator(s.newID))
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", projectID, err)
	}

	notifier := s.notifier
	if n, ok := surface.(ports.Notifier); ok {
		notifier = chainNotifiers(n, s.notifier)
	}
	logger := s.logger.With("project_id", projectID)

	gate := persistence.NewGate(s.manager.Store(), project,
		persistence.WithSaveDelay(s.saveDelay),
		persistence.WithClock(s.clock),
		persistence.WithLogger(logger),
		persistence.WithNotifier(notifier),
		persistence.WithLifecycleHooks(s.hooks),
	)
	sess := bridge.New(tree, surface,
		bridge.WithProjectID(projectID),
		bridge.WithLogger(s.logger),
		bridge.WithNotifier(notifier),
		bridge.WithPersister(gate),
		bridge.WithPalette(s.palette),
		bridge.WithClock(s.clock),
		bridge.WithRenderDelay(s.renderDelay),
		bridge.WithLifecycleHooks(s.hooks),
		bridge.WithIDGenerator(s.newID),
	)
	logger.Info("session opened", "nodes", tree.Len(), "revision", project.Revision)
	return sess, nil
}

// Release drops the reference taken by the Open that returned sess. The last
// release closes it: pending renders are cancelled and the last snapshot is
// saved. A session that was already torn down by Delete or Close is ignored,
// so a late Release never touches a session opened afterwards for the same
// project.
func (s *Studio) Release(ctx context.Context, sess *bridge.Session) error {
	if sess == nil {
		return nil
	}
	projectID := sess.ProjectID()

	s.mu.Lock()
	entry, ok := s.open[projectID]
	if !ok || !entry.holds(sess) {
		s.mu.Unlock()
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		s.mu.Unlock()
		return nil
	}
	delete(s.open, projectID)
	s.mu.Unlock()

	s.logger.Info("session closed", "project_id", projectID)
	return sess.Close(ctx)
}

// Session returns the live session of projectID, or nil when it is not open.
func (s *Studio) Session(projectID string) *bridge.Session {
	return s.live(projectID)
}

// IsOpen reports whether projectID has a live session.
func (s *Studio) IsOpen(projectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[projectID]
	return ok
}

// Projects lists stored project IDs.
func (s *Studio) Projects(ctx context.Context) ([]string, error) {
	return s.manager.List(ctx)
}

// Project returns the record of projectID. When the project is open, the
// tree is the live document rather than the last save.
func (s *Studio) Project(ctx context.Context, projectID string) (*domain.Project, error) {
	project, err := s.manager.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if sess := s.live(projectID); sess != nil {
		if doc, err := sess.Document(ctx); err == nil {
			project.Tree = doc
		}
	}
	return project, nil
}

// Put replaces the document of projectID, creating the project when needed.
// An open session receives the new tree as a full replace, so it stays the
// single writer.
func (s *Studio) Put(ctx context.Context, projectID, name string, tree *domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	if sess := s.live(projectID); sess != nil {
		return sess.OnDomUpdated(ctx, data)
	}

	_, err = s.manager.Update(ctx, projectID, func(project *domain.Project) error {
		if name != "" {
			project.Name = name
		}
		project.Tree = data
		project.Revision++
		project.UpdatedAt = s.clock.Now().UTC()
		return nil
	})
	return err
}

// Delete closes any live session of projectID and removes the record.
func (s *Studio) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	entry, ok := s.open[projectID]
	delete(s.open, projectID)
	s.mu.Unlock()
	if ok {
		<-entry.ready
		if entry.session != nil {
			_ = entry.session.Close(ctx)
		}
	}
	return s.manager.Delete(ctx, projectID)
}

// Close tears down every open session.
func (s *Studio) Close(ctx context.Context) error {
	s.mu.Lock()
	entries := s.open
	s.open = make(map[string]*openSession)
	s.mu.Unlock()

	var errs []error
	for id, entry := range entries {
		<-entry.ready
		if entry.session == nil {
			continue
		}
		if err := entry.session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Studio) live(projectID string) *bridge.Session {
	s.mu.Lock()
	entry, ok := s.open[projectID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	<-entry.ready
	return entry.session
}

func chainNotifiers(a, b ports.Notifier) ports.Notifier {
	if b == nil {
		return a
	}
	return ports.NotifierFunc(func(ctx context.Context, n domain.Notice) {
		a.Notify(ctx, n)
		b.Notify(ctx, n)
	})
}
