package lattice_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/testutils"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameRecorder struct {
	mu      sync.Mutex
	frames  []domain.Frame
	notices []domain.Notice
}

func (r *frameRecorder) Render(_ context.Context, f domain.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

func (r *frameRecorder) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *frameRecorder) Notices() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

func newStudio(t *testing.T) (*lattice.Studio, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	studio := lattice.New(store, lattice.WithIDGenerator(testutils.SequentialIDs("n")))
	t.Cleanup(func() { _ = studio.Close(context.Background()) })
	return studio, store
}

func TestStudio_OpenCreatesProject(t *testing.T) {
	ctx := context.Background()
	studio, store := newStudio(t)

	sess, err := studio.Open(ctx, "landing", nil)
	require.NoError(t, err)
	assert.Equal(t, "landing", sess.ProjectID())
	assert.True(t, studio.IsOpen("landing"))

	p, err := store.Load(ctx, "landing")
	require.NoError(t, err)
	assert.Equal(t, "landing", p.Name)
}

func TestStudio_SharedSession(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)

	a, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	b, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, studio.Release(ctx, a))
	assert.True(t, studio.IsOpen("p"), "one reference is still held")
	require.NoError(t, studio.Release(ctx, b))
	assert.False(t, studio.IsOpen("p"))

	assert.NoError(t, studio.Release(ctx, a), "releasing a closed project is a no-op")
}

func TestStudio_ReleaseSavesLastSnapshot(t *testing.T) {
	ctx := context.Background()
	studio, store := newStudio(t)

	sess, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	id, err := sess.OnPaletteDrop(ctx, "paragraph", domain.RootID, 0)
	require.NoError(t, err)
	require.NoError(t, sess.OnElementTextChanged(ctx, id, "Saved on close"))
	require.NoError(t, studio.Release(ctx, sess))

	p, err := store.Load(ctx, "p")
	require.NoError(t, err)
	tree, err := p.Document()
	require.NoError(t, err)
	require.Len(t, tree.Roots, 1)
	assert.Equal(t, "Saved on close", tree.Roots[0].Text)
	assert.Positive(t, p.Revision)
}

func TestStudio_ProjectReadsLiveDocument(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)

	sess, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	_, err = sess.OnPaletteDrop(ctx, "heading", domain.RootID, 0)
	require.NoError(t, err)

	p, err := studio.Project(ctx, "p")
	require.NoError(t, err)
	tree, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, tree.IDs())
}

func TestStudio_PutRoutesThroughOpenSession(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)
	surface := &frameRecorder{}

	sess, err := studio.Open(ctx, "p", surface)
	require.NoError(t, err)
	require.NoError(t, sess.Ready(ctx))

	require.NoError(t, studio.Put(ctx, "p", "", domain.NewTree(domain.NewNode("x", "p", "replaced"))))

	snap, err := sess.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, snap.IDs())

	surface.mu.Lock()
	last := surface.frames[len(surface.frames)-1]
	surface.mu.Unlock()
	assert.Contains(t, last.Markup, "replaced")
}

func TestStudio_PutWithoutSession(t *testing.T) {
	ctx := context.Background()
	studio, store := newStudio(t)

	require.NoError(t, studio.Put(ctx, "fresh", "Fresh page", domain.NewTree(domain.NewNode("a", "h1", "Hi"))))

	p, err := store.Load(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "Fresh page", p.Name)
	assert.Equal(t, int64(1), p.Revision)

	var wire []map[string]any
	require.NoError(t, json.Unmarshal(p.Tree, &wire))
	assert.Equal(t, "a", wire[0]["id"])
}

func TestStudio_SurfaceReceivesNotices(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)
	surface := &frameRecorder{}

	sess, err := studio.Open(ctx, "p", surface)
	require.NoError(t, err)

	assert.ErrorIs(t, sess.OnElementDelete(ctx, "ghost"), domain.ErrNodeNotFound)
	notices := surface.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeError, notices[0].Level)
}

func TestStudio_Delete(t *testing.T) {
	ctx := context.Background()
	studio, store := newStudio(t)

	sess, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	require.NoError(t, studio.Delete(ctx, "p"))

	assert.False(t, studio.IsOpen("p"))
	_, err = store.Load(ctx, "p")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	assert.ErrorIs(t, sess.Ready(ctx), domain.ErrSessionClosed)
}

func TestStudio_StaleReleaseAfterDelete(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)

	old, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	require.NoError(t, studio.Delete(ctx, "p"))

	current, err := studio.Open(ctx, "p", nil)
	require.NoError(t, err)
	require.NotSame(t, old, current)

	require.NoError(t, studio.Release(ctx, old))
	assert.True(t, studio.IsOpen("p"), "the re-opened session keeps its reference")
	assert.Same(t, current, studio.Session("p"))
	assert.NoError(t, current.Ready(ctx))

	require.NoError(t, studio.Release(ctx, current))
	assert.False(t, studio.IsOpen("p"))
}

func TestStudio_Projects(t *testing.T) {
	ctx := context.Background()
	studio, _ := newStudio(t)

	for _, id := range []string{"b", "a"} {
		require.NoError(t, studio.Put(ctx, id, "", &domain.Tree{}))
	}
	ids, err := studio.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestStudio_OpenRejectsEmptyID(t *testing.T) {
	studio, _ := newStudio(t)
	_, err := studio.Open(context.Background(), "", nil)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestStudio_Palette(t *testing.T) {
	studio, _ := newStudio(t)
	kinds, err := studio.Palette().ListTemplates(context.Background())
	require.NoError(t, err)
	assert.Contains(t, kinds, "heading")

	var _ ports.PaletteLoader = studio.Palette()
}
