// Package store persists analysis runs so batch results can be listed
// and re-exported without recomputation.
package store

import (
	"context"

	"github.com/sells-group/canopy-cli/internal/model"
)

// RunFilter narrows ListRuns.
type RunFilter struct {
	Status   model.RunStatus
	Location string
	Limit    int
	Offset   int
}

// Store is the persistence interface for analysis runs.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context, loc model.Location) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	// MarkRunFailed records a terminal failure (or timeout) with its cause.
	MarkRunFailed(ctx context.Context, runID string, status model.RunStatus, cause string) error
	SaveReport(ctx context.Context, runID string, report *model.Report) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	Close() error
}
