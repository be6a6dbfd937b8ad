package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore keeps every saved record and can be told to fail.
type recordingStore struct {
	mu    sync.Mutex
	saves []domain.Project
	fail  int
}

func (s *recordingStore) Save(_ context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("disk full")
	}
	s.saves = append(s.saves, *p)
	return nil
}

func (s *recordingStore) Load(_ context.Context, id string) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.saves) - 1; i >= 0; i-- {
		if s.saves[i].ID == id {
			p := s.saves[i]
			return &p, nil
		}
	}
	return nil, domain.ErrProjectNotFound
}

func (s *recordingStore) Delete(context.Context, string) error { return nil }
func (s *recordingStore) List(context.Context) ([]string, error) { return nil, nil }

func (s *recordingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func (s *recordingStore) last() domain.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[len(s.saves)-1]
}

func newGate(t *testing.T, store *recordingStore, opts ...persistence.Option) (*persistence.Gate, *testutils.ManualClock) {
	t.Helper()
	clock := testutils.NewManualClock()
	project := domain.NewProject("p1", "Landing")
	project.Metadata["author"] = "ana"
	project.Revision = 7
	g := persistence.NewGate(store, project, append([]persistence.Option{persistence.WithClock(clock)}, opts...)...)
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g, clock
}

func TestGate_CoalescesBursts(t *testing.T) {
	store := &recordingStore{}
	g, clock := newGate(t, store)

	for i := range 10 {
		g.Schedule([]byte(`[{"id":"n` + string(rune('0'+i)) + `"}]`))
		clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 0, store.count(), "nothing is written while edits keep coming")
	assert.True(t, g.Pending())

	clock.Advance(persistence.DefaultSaveDelay)
	require.Eventually(t, func() bool { return g.Revision() == 8 }, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, store.count())
	saved := store.last()
	assert.Equal(t, `[{"id":"n9"}]`, string(saved.Tree), "only the latest snapshot is written")
	assert.Equal(t, int64(8), saved.Revision)
	assert.Equal(t, "Landing", saved.Name)
	assert.Equal(t, "ana", saved.Metadata["author"])
	assert.Equal(t, clock.Now(), saved.UpdatedAt)
	assert.False(t, g.Pending())
}

func TestGate_FailureKeepsLatestState(t *testing.T) {
	store := &recordingStore{fail: 1}
	var notices []domain.Notice
	var mu sync.Mutex
	var events []*domain.PersistEvent
	g, clock := newGate(t, store,
		persistence.WithNotifier(notifierFunc(func(n domain.Notice) {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		})),
		persistence.WithLifecycleHooks(domain.LifecycleHooks{
			OnPersist: func(_ context.Context, e *domain.PersistEvent) {
				mu.Lock()
				events = append(events, e)
				mu.Unlock()
			},
		}),
	)

	g.Schedule([]byte(`[{"id":"a"}]`))
	clock.Advance(persistence.DefaultSaveDelay)
	eventCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(events)
	}
	require.Eventually(t, func() bool { return eventCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), g.Failures())
	assert.True(t, g.Pending(), "a failed snapshot stays pending")

	g.Schedule([]byte(`[{"id":"b"}]`))
	clock.Advance(persistence.DefaultSaveDelay)
	require.Eventually(t, func() bool { return eventCount() == 2 }, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, store.count())
	assert.Equal(t, `[{"id":"b"}]`, string(store.last().Tree))
	assert.Equal(t, int64(8), store.last().Revision, "a failed write does not consume a revision")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeError, notices[0].Level)
	require.Len(t, events, 2)
	assert.Error(t, events[0].Err)
	assert.NoError(t, events[1].Err)
	assert.Equal(t, "p1", events[1].ProjectID)
}

func TestGate_FlushAndClose(t *testing.T) {
	store := &recordingStore{}
	g, clock := newGate(t, store)

	require.NoError(t, g.Flush(context.Background()), "flushing nothing is a no-op")
	assert.Equal(t, 0, store.count())

	g.Schedule([]byte(`[{"id":"a"}]`))
	require.NoError(t, g.Flush(context.Background()))
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 0, clock.Pending(), "flush cancels the timer")

	g.Schedule([]byte(`[{"id":"b"}]`))
	require.NoError(t, g.Close(context.Background()))
	assert.Equal(t, 2, store.count(), "close writes the last snapshot")
	assert.Equal(t, `[{"id":"b"}]`, string(store.last().Tree))
	assert.Equal(t, int64(9), store.last().Revision)

	g.Schedule([]byte(`[{"id":"c"}]`))
	clock.Advance(persistence.DefaultSaveDelay)
	assert.Equal(t, 2, store.count(), "a closed gate ignores snapshots")
	assert.NoError(t, g.Close(context.Background()))
}

func TestGate_CloseReportsFailure(t *testing.T) {
	store := &recordingStore{fail: 1}
	g, _ := newGate(t, store)

	g.Schedule([]byte(`[]`))
	err := g.Close(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.False(t, g.Persisting())
}

type notifierFunc func(domain.Notice)

func (f notifierFunc) Notify(_ context.Context, n domain.Notice) { f(n) }
