package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/lattice/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event. Successful events
// are logged at debug level, failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMutation: func(ctx context.Context, e *domain.MutationEvent) {
			attrs := []any{"project_id", e.ProjectID, "op", e.Op, "nodes", e.NodeIDs}
			if e.Diff != nil {
				attrs = append(attrs,
					"added", len(e.Diff.Added),
					"removed", len(e.Diff.Removed),
					"changed", len(e.Diff.Changed),
				)
			}
			log(ctx, logger, "mutation", e.Err, attrs...)
		},
		OnRender: func(ctx context.Context, e *domain.RenderEvent) {
			log(ctx, logger, "render", e.Err,
				"project_id", e.ProjectID,
				"seq", e.Seq,
				"debounced", e.Debounced,
				"bytes", e.Bytes,
				"duration", e.Duration,
			)
		},
		OnPersist: func(ctx context.Context, e *domain.PersistEvent) {
			log(ctx, logger, "persist", e.Err,
				"project_id", e.ProjectID,
				"revision", e.Revision,
				"bytes", e.Bytes,
				"duration", e.Duration,
			)
		},
	}
}

func log(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	if err != nil {
		logger.WarnContext(ctx, msg, append(attrs, "err", err)...)
		return
	}
	logger.DebugContext(ctx, msg, attrs...)
}
