package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MichaelB312/storybook/internal/jobs"
)

const (
	// DefaultPollInterval is the delay between status requests.
	DefaultPollInterval = 2 * time.Second

	// DefaultPollAttempts caps the number of status requests per job.
	DefaultPollAttempts = 150

	// DefaultPollTimeout caps the total wall-clock time spent polling
	// one job.
	DefaultPollTimeout = 5 * time.Minute
)

// ErrClientTimeout is returned when a job does not reach a terminal
// state within the poller's attempt and duration bounds. The job may
// still be running server-side.
var ErrClientTimeout = errors.New("timed out waiting for job completion")

// Poller waits for asynchronous jobs to finish by polling the job API.
type Poller struct {
	client *Client

	// Interval, Attempts, and Timeout bound the wait. Zero values use
	// the package defaults.
	Interval time.Duration
	Attempts int
	Timeout  time.Duration
}

// NewPoller creates a Poller on top of an API client.
func NewPoller(client *Client) *Poller {
	return &Poller{
		client:   client,
		Interval: DefaultPollInterval,
		Attempts: DefaultPollAttempts,
		Timeout:  DefaultPollTimeout,
	}
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

func (p *Poller) attempts() int {
	if p.Attempts <= 0 {
		return DefaultPollAttempts
	}
	return p.Attempts
}

func (p *Poller) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultPollTimeout
	}
	return p.Timeout
}

// PollJob polls one job until it reaches a terminal state. The returned
// record may be completed or failed; callers inspect Status. When the
// bounds expire first, ErrClientTimeout is returned.
func (p *Poller) PollJob(ctx context.Context, jobID string) (*jobs.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	for attempt := 0; attempt < p.attempts(); attempt++ {
		var rec jobs.Record
		if err := p.client.Get(ctx, "/api/jobs/"+jobID, &rec); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: job %s", ErrClientTimeout, jobID)
			}
			return nil, err
		}
		if rec.Status.Terminal() {
			return &rec, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: job %s", ErrClientTimeout, jobID)
		}
	}
	return nil, fmt.Errorf("%w: job %s", ErrClientTimeout, jobID)
}

// PollBook polls a set of jobs concurrently and returns their terminal
// records keyed by job ID. The first poll error cancels the remaining
// waits; individual job failures are not errors.
func (p *Poller) PollBook(ctx context.Context, jobIDs []string) (map[string]*jobs.Record, error) {
	results := make([]*jobs.Record, len(jobIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range jobIDs {
		g.Go(func() error {
			rec, err := p.PollJob(gctx, id)
			if err != nil {
				return err
			}
			results[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*jobs.Record, len(jobIDs))
	for i, id := range jobIDs {
		out[id] = results[i]
	}
	return out, nil
}
