package storage

import (
	"context"
	"time"
)

// Run is one pipeline run as kept in the ledger.
type Run struct {
	ID          int64
	StartedAt   time.Time
	Source      string
	IR          string
	Optimized   string
	AttrIndex   int // -1 when the run stopped before synthesis
	AttrProfile string
	Status      string
	Stage       string
	Error       string
	Functions   []RunFunction
}

// RunFunction is one define line a run repointed.
type RunFunction struct {
	Name     string
	SymbolID string // stable ID of the source definition
	Line     int
	OldRef   string
	NewRef   string
}

// RunStore persists pipeline runs.
type RunStore interface {
	// RecordRun stores run and its functions and returns the new run ID.
	RecordRun(ctx context.Context, run *Run) (int64, error)

	// RecentRuns returns up to limit runs, newest first, without functions.
	RecentRuns(ctx context.Context, limit int) ([]*Run, error)

	// GetRun loads a run and its functions.
	GetRun(ctx context.Context, id int64) (*Run, error)

	Close() error
}
