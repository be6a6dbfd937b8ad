package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/loam"
	"github.com/mitchellh/mapstructure"
)

// Loader adapts the Loam library to the Lattice PaletteLoader interface.
// Every Markdown, YAML or JSON document of the repository is a template.
type Loader struct {
	Repo *loam.TypedRepository[TemplateMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[TemplateMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at dir and wraps it.
// Strict mode keeps numbers as json.Number across Markdown, YAML and JSON.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[TemplateMetadata](repo)), nil
}

// GetTemplate loads the template stored under kind (the file name without
// extension).
func (l *Loader) GetTemplate(ctx context.Context, kind string) (*domain.Template, error) {
	return l.load(ctx, trimExtension(kind), make(map[string]bool))
}

func (l *Loader) load(ctx context.Context, kind string, visited map[string]bool) (*domain.Template, error) {
	if visited[kind] {
		return nil, fmt.Errorf("%w: template %q includes itself", domain.ErrCycle, kind)
	}
	// DFS cycle detection: mark, unmark on return.
	visited[kind] = true
	defer delete(visited, kind)

	doc, err := l.Repo.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrTemplateNotFound, kind, err)
	}
	meta := doc.Data

	text := meta.Text
	if text == "" {
		text = strings.TrimSpace(doc.Content)
	}
	root := domain.NewNode(kind, meta.Tag, text)
	root.Styles = stringify(meta.Styles)
	root.Attributes = stringify(meta.Attributes)

	if err := l.resolveChildren(ctx, root, meta.Children, visited); err != nil {
		return nil, fmt.Errorf("template %q: %w", kind, err)
	}

	label := meta.Label
	if label == "" {
		label = kind
	}
	return &domain.Template{Kind: kind, Label: label, Category: meta.Category, Root: root}, nil
}

// resolveChildren recursively resolves polymorphic child definitions (inline
// maps or template references). Child ids are derived from the parent id and
// position; they only need to be unique inside the template because every
// drop instantiates fresh ids.
func (l *Loader) resolveChildren(ctx context.Context, parent *domain.Node, raw []any, visited map[string]bool) error {
	for i, item := range raw {
		id := fmt.Sprintf("%s.%d", parent.ID, i)

		switch v := item.(type) {
		case string:
			ref, err := l.load(ctx, trimExtension(v), visited)
			if err != nil {
				return err
			}
			child := ref.Root.CloneFresh(childIDs(id))
			parent.Append(child)

		case map[string]any, map[any]any:
			var spec ElementSpec
			if err := mapstructure.Decode(v, &spec); err != nil {
				return fmt.Errorf("failed to decode child %s: %w", id, err)
			}
			child := domain.NewNode(id, spec.Tag, spec.Text)
			child.Styles = stringify(spec.Styles)
			child.Attributes = stringify(spec.Attributes)
			if err := l.resolveChildren(ctx, child, spec.Children, visited); err != nil {
				return err
			}
			parent.Append(child)

		default:
			return fmt.Errorf("invalid child definition type: %T", v)
		}
	}
	return nil
}

// ListTemplates lists every template kind in the repository.
func (l *Loader) ListTemplates(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	kinds := make([]string, 0, len(docs))
	for _, doc := range docs {
		kind := trimExtension(doc.ID)

		// Collision Detection
		if existingPath, ok := seen[kind]; ok {
			return nil, fmt.Errorf("collision detected: kind '%s' is defined in both '%s' and '%s'", kind, existingPath, doc.ID)
		}
		seen[kind] = doc.ID
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds, nil
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Coalesce: a pending signal already covers this change.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func childIDs(prefix string) domain.IDGenerator {
	n := 0
	return func() string {
		n++
		if n == 1 {
			return prefix
		}
		return fmt.Sprintf("%s.%d", prefix, n-1)
	}
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// stringify flattens YAML scalars into the string maps of the document model.
func stringify(src map[string]any) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
