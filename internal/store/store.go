package store

import (
	"context"
	"errors"

	"github.com/me/ksched/pkg/model"
)

// ErrNotFound is returned when a delete targets a missing row.
var ErrNotFound = errors.New("not found")

// Store defines the persistence layer for simulation runs and their traces.
// Getters return nil, nil when the row does not exist.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	DeleteRun(ctx context.Context, id string) error

	// SaveRun writes a run with its trace and thread summaries atomically.
	SaveRun(ctx context.Context, run *model.Run, events []model.TraceEvent, threads []model.ThreadSummary) error

	// Trace events, ordered by sequence number
	AddEvents(ctx context.Context, events []model.TraceEvent) error
	ListEvents(ctx context.Context, runID string, opts model.ListOptions) ([]model.TraceEvent, int, error)

	// Per-thread statistics
	AddThreadSummaries(ctx context.Context, summaries []model.ThreadSummary) error
	ListThreadSummaries(ctx context.Context, runID string) ([]model.ThreadSummary, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
