package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can hold a project.
const DefaultLockTTL = 30 * time.Second

// recordLock serializes access to one project record. holders counts the
// goroutines waiting for or holding it; the entry is dropped at zero.
type recordLock struct {
	sync.Mutex
	holders int
}

// Manager is the gateway to project records. Every read and write of a
// record runs under that project's lock, so a persistence gate saving a
// snapshot, a Put replacing the document and a Delete never interleave.
// Locks exist only while in use.
type Manager struct {
	store   ports.ProjectStore
	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	records map[string]*recordLock
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker also takes a distributed lock per record, for replicas sharing
// one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the lease of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store ports.ProjectStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		records: make(map[string]*recordLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the record of projectID.
func (m *Manager) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		project, err = m.store.Load(ctx, projectID)
		return err
	})
	return project, err
}

// LoadOrCreate reads the record of projectID, creating and saving an empty
// document named name (or projectID) when there is none. Two concurrent
// calls create it once. Store failures other than a missing record are
// returned untouched so that an unreachable store is never overwritten.
func (m *Manager) LoadOrCreate(ctx context.Context, projectID, name string) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var (
			created bool
			err     error
		)
		project, created, err = m.loadOrNew(ctx, projectID, name)
		if err != nil || !created {
			return err
		}
		if err := m.store.Save(ctx, project); err != nil {
			return fmt.Errorf("create project %q: %w", projectID, err)
		}
		m.logger.Info("project created", "project_id", projectID)
		return nil
	})
	return project, err
}

// Update runs fn on the current record of projectID (a new empty one when
// missing) and saves the result, all under the record's lock. An error from
// fn aborts the save.
func (m *Manager) Update(ctx context.Context, projectID string, fn func(*domain.Project) error) (*domain.Project, error) {
	var project *domain.Project
	err := m.WithLock(ctx, projectID, func(ctx context.Context) error {
		var err error
		if project, _, err = m.loadOrNew(ctx, projectID, ""); err != nil {
			return err
		}
		if err := fn(project); err != nil {
			return err
		}
		return m.store.Save(ctx, project)
	})
	return project, err
}

// Save writes project as the current record.
func (m *Manager) Save(ctx context.Context, project *domain.Project) error {
	return m.WithLock(ctx, project.ID, func(ctx context.Context) error {
		return m.store.Save(ctx, project)
	})
}

// Delete removes the record of projectID.
func (m *Manager) Delete(ctx context.Context, projectID string) error {
	return m.WithLock(ctx, projectID, func(ctx context.Context) error {
		return m.store.Delete(ctx, projectID)
	})
}

// List returns the stored project ids. Listing takes no record lock.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns a ProjectStore whose calls go through the record locks.
// Persistence gates save through it.
func (m *Manager) Store() ports.ProjectStore {
	return lockedStore{m}
}

// WithLock runs fn while holding the record lock of projectID and, when a
// locker is configured, its distributed lock.
func (m *Manager) WithLock(ctx context.Context, projectID string, fn func(context.Context) error) error {
	rec := m.hold(projectID)
	rec.Lock()
	defer func() {
		rec.Unlock()
		m.drop(projectID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, projectID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("lock project %q: %w", projectID, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("project unlock failed, lease will expire",
					"project_id", projectID, "ttl", m.lockTTL, "err", err)
			}
		}()
	}
	return fn(ctx)
}

// loadOrNew must run under the record lock. created reports that the
// record did not exist and the returned project is not saved yet.
func (m *Manager) loadOrNew(ctx context.Context, projectID, name string) (project *domain.Project, created bool, err error) {
	project, err = m.store.Load(ctx, projectID)
	switch {
	case err == nil:
		return project, false, nil
	case !errors.Is(err, domain.ErrProjectNotFound):
		return nil, false, fmt.Errorf("load project %q: %w", projectID, err)
	}
	if name == "" {
		name = projectID
	}
	return domain.NewProject(projectID, name), true, nil
}

func (m *Manager) hold(projectID string) *recordLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[projectID]
	if !ok {
		rec = &recordLock{}
		m.records[projectID] = rec
	}
	rec.holders++
	return rec
}

func (m *Manager) drop(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[projectID]
	if !ok {
		return
	}
	if rec.holders--; rec.holders <= 0 {
		delete(m.records, projectID)
	}
}

type lockedStore struct{ m *Manager }

func (s lockedStore) Save(ctx context.Context, p *domain.Project) error { return s.m.Save(ctx, p) }
func (s lockedStore) Load(ctx context.Context, id string) (*domain.Project, error) {
	return s.m.Load(ctx, id)
}
func (s lockedStore) Delete(ctx context.Context, id string) error { return s.m.Delete(ctx, id) }
func (s lockedStore) List(ctx context.Context) ([]string, error)  { return s.m.List(ctx) }
