package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ProjectStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, before writing, the
// values of element attributes and project metadata whose names match one of
// the patterns (for example "(?i)password" or "^data-email$"). The live
// document is never touched; only the stored copy is redacted.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ProjectStore) ports.ProjectStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, project *domain.Project) error {
	cloned := *project
	cloned.Metadata = maskMap(project.Metadata, m.patterns)

	tree, err := project.Document()
	if err != nil {
		return fmt.Errorf("redact project %q: %w", project.ID, err)
	}
	for n := range tree.All() {
		n.Attributes = maskMap(n.Attributes, m.patterns)
	}
	cloned.Tree, err = json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("redact project %q: %w", project.ID, err)
	}

	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	return m.next.Load(ctx, projectID)
}

func (m *piiMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// maskMap returns a copy of in with matching keys masked.
func maskMap(in map[string]string, patterns []*regexp.Regexp) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
		for _, p := range patterns {
			if p.MatchString(k) {
				out[k] = Mask
				break
			}
		}
	}
	return out
}
