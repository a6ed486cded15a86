// Package store keeps a history of metric runs so a published table can be
// traced back to the scheme, family and inputs that produced it.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = eris.New("store: run not found")

// Run is one recorded metric run.
type Run struct {
	ID        string         `json:"id"`
	Scheme    string         `json:"scheme"`
	Family    string         `json:"family"`
	Units     int            `json:"units"`
	Columns   []string       `json:"columns"`
	Warnings  map[string]int `json:"warnings,omitempty"`
	Inputs    []string       `json:"inputs,omitempty"`
	Output    string         `json:"output,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	ElapsedMS int64          `json:"elapsed_ms"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Family string `json:"family,omitempty"`
	Scheme string `json:"scheme,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store persists run records.
type Store interface {
	RecordRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the newest runs first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func validate(run Run) error {
	if run.ID == "" {
		return eris.New("store: run id is required")
	}
	return nil
}
