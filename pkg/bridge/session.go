package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lattice/internal/logging"
	"github.com/aretw0/lattice/internal/mutation"
	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// DefaultRenderDelay is the trailing debounce applied to move renders.
const DefaultRenderDelay = 500 * time.Millisecond

// Persister receives serialized snapshots of the document.
// Schedule is called on the control goroutine and must not block.
type Persister interface {
	Schedule(snapshot []byte)
	Persisting() bool
	Close(ctx context.Context) error
}

// Status is a point-in-time view of a session.
type Status struct {
	ProjectID  string           `json:"project_id"`
	State      domain.SyncState `json:"state"`
	Persisting bool             `json:"persisting"`
	Ready      bool             `json:"ready"`
	Seq        uint64           `json:"seq"`
	Pending    bool             `json:"render_pending"`
}

// Session owns one document tree and synchronizes it with a rendering
// surface. Every inbound message is executed on a single control goroutine in
// arrival order, so the tree is never touched concurrently. Public methods
// block until their message has been processed.
type Session struct {
	projectID string
	engine    *mutation.Engine
	surface   ports.Surface
	notifier  ports.Notifier
	persister Persister
	palette   ports.PaletteLoader
	clock     ports.Clock
	delay     time.Duration
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	newID     domain.IDGenerator

	debouncer *Debouncer
	mailbox   chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	state atomic.Value // domain.SyncState
	seq   atomic.Uint64
	ready atomic.Bool

	// Owned by the control goroutine.
	held          bool
	renderPending bool
}

// New starts a session over tree. The first frame is held until Ready.
func New(tree *domain.Tree, surface ports.Surface, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		surface:   surface,
		notifier:  ports.NotifierFunc(func(context.Context, domain.Notice) {}),
		persister: nopPersister{},
		clock:     ports.SystemClock,
		delay:     DefaultRenderDelay,
		logger:    logging.NewNop(),
		newID:     domain.NewID,
		mailbox:   make(chan func()),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.surface == nil {
		s.surface = ports.SurfaceFunc(func(context.Context, domain.Frame) error { return nil })
	}
	s.logger = s.logger.With("project_id", s.projectID)
	s.engine = mutation.New(tree, mutation.WithIDGenerator(s.newID))
	s.debouncer = NewDebouncer(s.clock, s.delay)
	s.state.Store(domain.StateIdle)

	go s.loop()
	return s
}

// ProjectID returns the id of the edited project.
func (s *Session) ProjectID() string {
	return s.projectID
}

// Status reports the current state without waiting for the control goroutine.
func (s *Session) Status() Status {
	return Status{
		ProjectID:  s.projectID,
		State:      s.state.Load().(domain.SyncState),
		Persisting: s.persister.Persisting(),
		Ready:      s.ready.Load(),
		Seq:        s.seq.Load(),
		Pending:    s.debouncer.Pending(),
	}
}

func (s *Session) loop() {
	defer close(s.stopped)
	for {
		select {
		case task := <-s.mailbox:
			task()
			s.setState(domain.StateIdle)
		case <-s.done:
			return
		}
	}
}

// do runs fn on the control goroutine and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	task := func() {
		err := fn()
		s.setState(domain.StateIdle)
		reply <- err
	}

	select {
	case s.mailbox <- task:
	case <-s.done:
		return domain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		// The task still runs; only the caller stops waiting.
		return ctx.Err()
	}
}

// post enqueues fn without waiting. Used by timer callbacks.
func (s *Session) post(fn func()) {
	select {
	case s.mailbox <- fn:
	case <-s.done:
	}
}

// Ready marks the surface as initialized and renders the current document.
// Frames produced before the first Ready are held and coalesced into this one.
func (s *Session) Ready(ctx context.Context) error {
	return s.do(ctx, func() error {
		first := !s.ready.Swap(true)
		s.logger.Debug("surface ready", "first", first, "held", s.held)
		s.held = false
		s.renderNow(ctx)
		return nil
	})
}

// OnElementSelected selects a node. Only the highlight directive is sent.
func (s *Session) OnElementSelected(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		err := s.mutate(ctx, "select", []string{id}, func() error {
			return s.engine.Select(id)
		})
		if err != nil {
			return err
		}
		s.highlight(ctx)
		return nil
	})
}

// OnSelectionCleared drops the selection.
func (s *Session) OnSelectionCleared(ctx context.Context) error {
	return s.do(ctx, func() error {
		_ = s.mutate(ctx, "deselect", nil, func() error {
			s.engine.ClearSelection()
			return nil
		})
		s.highlight(ctx)
		return nil
	})
}

// OnElementTextChanged replaces the inline text of a node.
func (s *Session) OnElementTextChanged(ctx context.Context, id, text string) error {
	clean, err := SanitizeText(text)
	if err != nil {
		s.fail(ctx, "text", err)
		return err
	}
	return s.command(ctx, "text", []string{id}, func() error {
		return s.engine.SetText(id, clean)
	})
}

// OnElementTagChanged changes the element kind of a node.
func (s *Session) OnElementTagChanged(ctx context.Context, id, tag string) error {
	clean, err := SanitizeInput(tag)
	if err != nil {
		s.fail(ctx, "tag", err)
		return err
	}
	return s.command(ctx, "tag", []string{id}, func() error {
		return s.engine.SetTag(id, clean)
	})
}

// OnStyleChanged sets (or, with an empty value, removes) a style property.
func (s *Session) OnStyleChanged(ctx context.Context, id, prop, value string) error {
	clean, err := SanitizeInput(value)
	if err != nil {
		s.fail(ctx, "style", err)
		return err
	}
	return s.command(ctx, "style", []string{id}, func() error {
		return s.engine.SetStyle(id, prop, clean)
	})
}

// OnAttributeChanged sets (or, with an empty value, removes) an attribute.
func (s *Session) OnAttributeChanged(ctx context.Context, id, name, value string) error {
	clean, err := SanitizeInput(value)
	if err != nil {
		s.fail(ctx, "attribute", err)
		return err
	}
	return s.command(ctx, "attribute", []string{id}, func() error {
		return s.engine.SetAttribute(id, name, clean)
	})
}

// OnDomUpdated replaces the whole document with the surface's version.
// On a parse failure the current tree is kept and the *domain.DecodeError
// is returned. The selection survives when its node is still present.
func (s *Session) OnDomUpdated(ctx context.Context, payload []byte) error {
	return s.do(ctx, func() error {
		s.setState(domain.StateReplacing)
		parsed, err := domain.ParseTree(payload, domain.WithIDGenerator(s.newID))
		if err != nil {
			s.emitMutation(ctx, "replace", nil, nil, err)
			s.fail(ctx, "replace", err)
			return err
		}

		previous := s.engine.Tree()
		if sel := previous.Selected(); sel != nil {
			if n := parsed.FindByID(sel.ID); n != nil {
				n.Selected = true
			}
		}
		s.engine.Replace(parsed)
		s.emitMutation(ctx, "replace", nil, domain.Diff(previous, parsed), nil)

		s.renderNow(ctx)
		s.persist(ctx)
		return nil
	})
}

// OnElementMoved reparents a node. Moves arrive in bursts during a drag, so
// the render is debounced: only the last move of a burst is painted.
func (s *Session) OnElementMoved(ctx context.Context, id, parentID string, index int) error {
	return s.do(ctx, func() error {
		err := s.mutate(ctx, "move", []string{id}, func() error {
			return s.engine.MoveToParent(id, parentID, index)
		})
		if err != nil {
			return err
		}
		s.renderLater()
		s.persist(ctx)
		return nil
	})
}

// OnElementMoveUp swaps a node with its previous sibling.
func (s *Session) OnElementMoveUp(ctx context.Context, id string) error {
	return s.command(ctx, "move_up", []string{id}, func() error {
		return s.engine.MoveUp(id)
	})
}

// OnElementMoveDown swaps a node with its next sibling.
func (s *Session) OnElementMoveDown(ctx context.Context, id string) error {
	return s.command(ctx, "move_down", []string{id}, func() error {
		return s.engine.MoveDown(id)
	})
}

// OnElementDelete removes a node and its subtree.
func (s *Session) OnElementDelete(ctx context.Context, id string) error {
	return s.command(ctx, "delete", []string{id}, func() error {
		return s.engine.Delete(id)
	})
}

// OnElementDuplicate clones a subtree next to the original and returns the
// id of the clone.
func (s *Session) OnElementDuplicate(ctx context.Context, id string) (string, error) {
	var cloneID string
	err := s.command(ctx, "duplicate", []string{id}, func() error {
		clone, err := s.engine.Duplicate(id)
		if err != nil {
			return err
		}
		cloneID = clone.ID
		return nil
	})
	return cloneID, err
}

// OnElementsWrapInDiv decodes a JSON array of ids and wraps those nodes in a
// new div. It returns the id of the wrapper.
func (s *Session) OnElementsWrapInDiv(ctx context.Context, idsJSON string) (string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(idsJSON), &ids); err != nil {
		err = fmt.Errorf("%w: ids: %v", domain.ErrMalformedDocument, err)
		s.fail(ctx, "wrap", err)
		return "", err
	}

	var wrapperID string
	err := s.command(ctx, "wrap", ids, func() error {
		w, err := s.engine.WrapInDiv(ids)
		if err != nil {
			return err
		}
		wrapperID = w.ID
		return nil
	})
	return wrapperID, err
}

// OnPaletteDrop instantiates a palette template with fresh ids and inserts
// it under parentID (domain.RootID for the root list) at index.
func (s *Session) OnPaletteDrop(ctx context.Context, kind, parentID string, index int) (string, error) {
	if s.palette == nil {
		err := fmt.Errorf("%w: %q (no palette configured)", domain.ErrTemplateNotFound, kind)
		s.fail(ctx, "drop", err)
		return "", err
	}
	// Loading may hit storage, so it happens before entering the control loop.
	tmpl, err := s.palette.GetTemplate(ctx, kind)
	if err != nil {
		s.fail(ctx, "drop", err)
		return "", err
	}

	var nodeID string
	err = s.command(ctx, "drop", []string{kind}, func() error {
		node := tmpl.Instantiate(s.newID)
		if err := s.engine.Insert(node, parentID, index); err != nil {
			return err
		}
		nodeID = node.ID
		return nil
	})
	return nodeID, err
}

// Snapshot returns a deep copy of the current document.
func (s *Session) Snapshot(ctx context.Context) (*domain.Tree, error) {
	var out *domain.Tree
	err := s.do(ctx, func() error {
		out = s.engine.Tree().Clone()
		return nil
	})
	return out, err
}

// Document returns the serialized current document.
func (s *Session) Document(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.do(ctx, func() error {
		var err error
		out, err = json.Marshal(s.engine.Tree())
		return err
	})
	return out, err
}

// Close cancels any pending render, stops the control goroutine and closes
// the persister (which flushes its last snapshot). It is safe to call more
// than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		// Drain on the control goroutine so no message is cut in half.
		_ = s.do(ctx, func() error {
			s.debouncer.Cancel()
			s.renderPending = false
			return nil
		})
		s.debouncer.Cancel()
		close(s.done)
		<-s.stopped
		s.cancel()

		err = s.persister.Close(ctx)
		s.logger.Debug("session closed")
	})
	return err
}

// command runs a discrete mutation followed by an immediate render and a
// save.
func (s *Session) command(ctx context.Context, op string, ids []string, fn func() error) error {
	return s.do(ctx, func() error {
		if err := s.mutate(ctx, op, ids, fn); err != nil {
			return err
		}
		s.renderNow(ctx)
		s.persist(ctx)
		return nil
	})
}

// mutate applies fn in the Mutating state and reports the outcome.
func (s *Session) mutate(ctx context.Context, op string, ids []string, fn func() error) error {
	s.setState(domain.StateMutating)
	err := fn()
	s.emitMutation(ctx, op, ids, nil, err)
	if err != nil {
		s.fail(ctx, op, err)
	}
	return err
}

// renderNow delivers a full frame immediately, superseding any pending
// debounced render.
func (s *Session) renderNow(ctx context.Context) {
	s.debouncer.Cancel()
	s.renderPending = false
	s.render(ctx, false)
}

// renderLater arms the debounced render. The timer callback re-enters the
// control goroutine; a render that happened meanwhile makes it a no-op.
func (s *Session) renderLater() {
	s.renderPending = true
	s.debouncer.Schedule(func() {
		s.post(func() {
			if !s.renderPending {
				return
			}
			s.renderPending = false
			s.render(s.ctx, true)
		})
	})
}

func (s *Session) render(ctx context.Context, debounced bool) {
	if !s.ready.Load() {
		s.held = true
		return
	}
	s.setState(domain.StateRendering)
	start := time.Now()
	frame, err := render.Render(s.engine.Tree())
	if err == nil {
		frame.Seq = s.seq.Add(1)
		err = s.surface.Render(ctx, frame)
	}
	if err != nil {
		// The tree is already mutated; a failed paint is only reported.
		s.logger.Error("render failed", "err", err, "debounced", debounced)
	}
	if s.hooks.OnRender != nil {
		s.hooks.OnRender(ctx, &domain.RenderEvent{
			EventBase: s.eventBase(domain.EventRender),
			Seq:       frame.Seq,
			Debounced: debounced,
			Bytes:     len(frame.Markup),
			Duration:  time.Since(start),
			Err:       err,
		})
	}
}

// highlight sends a selection-only frame: the markup on the surface stays as
// it is and only the outline moves.
func (s *Session) highlight(ctx context.Context) {
	if !s.ready.Load() {
		s.held = true
		return
	}
	frame := domain.Frame{
		Seq:           s.seq.Add(1),
		Highlight:     render.Highlight(s.engine.Tree()),
		HighlightOnly: true,
	}
	if err := s.surface.Render(ctx, frame); err != nil {
		s.logger.Error("highlight failed", "err", err)
	}
}

// persist serializes the tree here, on the control goroutine, and hands the
// bytes to the persister. Only the write happens elsewhere.
func (s *Session) persist(ctx context.Context) {
	snapshot, err := json.Marshal(s.engine.Tree())
	if err != nil {
		s.logger.Error("snapshot failed", "err", err)
		return
	}
	s.persister.Schedule(snapshot)
}

func (s *Session) fail(ctx context.Context, op string, err error) {
	s.logger.Warn("operation rejected", "op", op, "err", err)
	s.notifier.Notify(ctx, domain.Notice{
		Level:   domain.NoticeError,
		Message: fmt.Sprintf("%s failed: %v", op, err),
	})
}

func (s *Session) emitMutation(ctx context.Context, op string, ids []string, diff *domain.TreeDiff, err error) {
	if s.hooks.OnMutation == nil {
		return
	}
	s.hooks.OnMutation(ctx, &domain.MutationEvent{
		EventBase: s.eventBase(domain.EventMutation),
		Op:        op,
		NodeIDs:   ids,
		Diff:      diff,
		Err:       err,
	})
}

func (s *Session) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: s.clock.Now(), Type: t, ProjectID: s.projectID}
}

func (s *Session) setState(st domain.SyncState) {
	s.state.Store(st)
}

type nopPersister struct{}

func (nopPersister) Schedule([]byte)             {}
func (nopPersister) Persisting() bool            { return false }
func (nopPersister) Close(context.Context) error { return nil }
