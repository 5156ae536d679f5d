package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MichaelB312/storybook/internal/story"
)

const (
	// DefaultTTL is how long a job record is kept after it started.
	DefaultTTL = time.Hour

	// DefaultSweepInterval is how often the sweeper scans for stale jobs.
	DefaultSweepInterval = 5 * time.Minute
)

// ErrNotFound is returned by Get for unknown job ids.
var ErrNotFound = fmt.Errorf("job not found")

// Store is the in-memory job registry. Status transitions are monotonic:
// pending -> processing -> completed|failed, and progress never decreases
// before a terminal state.
type Store struct {
	mu     sync.RWMutex
	jobs   map[string]*Record
	logger *slog.Logger
}

// NewStore creates an empty job store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		jobs:   make(map[string]*Record),
		logger: logger,
	}
}

// Create registers a new pending job and returns its id.
func (s *Store) Create(bookID string, page int) string {
	id := uuid.New().String()
	rec := &Record{
		ID:        id,
		BookID:    bookID,
		Page:      page,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[id] = rec
	s.mu.Unlock()

	s.logger.Info("job created", "job_id", id, "book_id", bookID, "page", page)
	return id
}

// Get returns a copy of the record, so callers can never mutate store
// state through it.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := *rec
	out.ElapsedMS = out.Elapsed()
	return out, nil
}

// List returns copies of all records, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		cp := *rec
		cp.ElapsedMS = cp.Elapsed()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// SetProcessing moves a pending job into the processing state.
func (s *Store) SetProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.Status != StatusPending {
		return fmt.Errorf("job %s: illegal transition %s -> %s", id, rec.Status, StatusProcessing)
	}
	rec.Status = StatusProcessing
	return nil
}

// SetProgress raises the job's progress. Decreases and updates after a
// terminal state are ignored; progress is monotonic by contract.
func (s *Store) SetProgress(id string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok || rec.Status.Terminal() {
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress > rec.Progress {
		rec.Progress = progress
	}
}

// Complete moves a job to completed with its result.
func (s *Store) Complete(id string, result *story.PageResult) error {
	return s.finish(id, StatusCompleted, result, "")
}

// Fail moves a job to failed with a short error string; this is all the
// presentation layer ever sees of internal failures.
func (s *Store) Fail(id string, errMsg string) error {
	return s.finish(id, StatusFailed, nil, errMsg)
}

func (s *Store) finish(id string, status Status, result *story.PageResult, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("job %s: illegal transition %s -> %s", id, rec.Status, status)
	}

	now := time.Now().UTC()
	rec.Status = status
	rec.Result = result
	rec.Error = errMsg
	rec.CompletedAt = &now
	if status == StatusCompleted {
		rec.Progress = 100
	}

	s.logger.Info("job finished", "job_id", id, "status", status, "elapsed_ms", rec.Elapsed())
	return nil
}

// Clear removes every record. Administrative/test operation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*Record)
	s.logger.Info("job store cleared")
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Sweep removes records older than ttl, measured from StartedAt, and
// returns how many were evicted. Running jobs past the TTL are evicted
// too: their goroutines finish against a record nobody can observe,
// which is acceptable for an ephemeral store.
func (s *Store) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, rec := range s.jobs {
		if rec.StartedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Info("swept stale jobs", "evicted", evicted, "remaining", len(s.jobs))
	}
	return evicted
}

// RunSweeper periodically sweeps until the context is cancelled. Call in
// a goroutine.
func (s *Store) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ttl)
		}
	}
}
