// Package jobs holds the in-memory registry of generation jobs: their
// records, the status state machine, and the TTL sweeper. Jobs are
// ephemeral by design; nothing here survives a process restart.
package jobs

import (
	"time"

	"github.com/MichaelB312/storybook/internal/story"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the observable state of a generation job. It is created by
// CreateJob, mutated only by the pipeline goroutine executing the job,
// and read by the job API and internal wait loops.
type Record struct {
	ID          string            `json:"id"`
	BookID      string            `json:"book_id"`
	Page        int               `json:"page"`
	Status      Status            `json:"status"`
	Progress    int               `json:"progress"`
	Result      *story.PageResult `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`

	// ElapsedMS is filled in on every read so API clients get the job's
	// duration without computing it from the timestamps.
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Elapsed returns the job's wall-clock duration in milliseconds so far,
// or the final duration once terminal.
func (r *Record) Elapsed() int64 {
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(r.StartedAt).Milliseconds()
}
