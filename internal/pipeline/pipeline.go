package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MichaelB312/storybook/internal/compose"
	"github.com/MichaelB312/storybook/internal/home"
	"github.com/MichaelB312/storybook/internal/jobs"
	"github.com/MichaelB312/storybook/internal/story"
	"github.com/MichaelB312/storybook/internal/synth"
)

// Config holds the pipeline tuning knobs. Zero values are replaced with
// the defaults below.
type Config struct {
	// AnchorWait bounds how long a page job waits for its book's anchor
	// before failing with ErrDependencyUnavailable.
	AnchorWait time.Duration

	// PageStagger spaces out page job starts within a book to smooth the
	// outbound request rate.
	PageStagger time.Duration

	// JobTimeout bounds a single job end to end.
	JobTimeout time.Duration

	// UpscaleFactor is the integer factor for the final upscale pass.
	UpscaleFactor int
}

const (
	DefaultAnchorWait    = 30 * time.Second
	DefaultPageStagger   = time.Second
	DefaultJobTimeout    = 10 * time.Minute
	DefaultUpscaleFactor = 2

	refCacheTTL   = time.Hour
	refCacheSweep = 10 * time.Minute
)

func (c *Config) applyDefaults() {
	if c.AnchorWait <= 0 {
		c.AnchorWait = DefaultAnchorWait
	}
	if c.PageStagger == 0 {
		c.PageStagger = DefaultPageStagger
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	if c.UpscaleFactor <= 0 {
		c.UpscaleFactor = DefaultUpscaleFactor
	}
}

// Pipeline orchestrates the three synthesis stages for every job: the
// book's anchor cutout, per-page pose variants, and background inpainting
// on the composed page.
type Pipeline struct {
	jobs    *jobs.Store
	caller  *synth.Caller
	anchors *anchorRegistry
	refs    *gocache.Cache
	home    *home.Dir
	logger  *slog.Logger
	cfg     Config

	mu       sync.Mutex
	launched map[string]int
}

// New builds a Pipeline around a job store and a synthesis caller.
func New(store *jobs.Store, caller *synth.Caller, cfg Config, logger *slog.Logger) *Pipeline {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		jobs:     store,
		caller:   caller,
		anchors:  newAnchorRegistry(),
		refs:     gocache.New(refCacheTTL, refCacheSweep),
		logger:   logger,
		cfg:      cfg,
		launched: make(map[string]int),
	}
}

// Jobs exposes the underlying job store.
func (p *Pipeline) Jobs() *jobs.Store { return p.jobs }

// SetHome enables persisting completed page images under the home data
// directory. Persistence is best effort; a write failure never fails
// the job.
func (p *Pipeline) SetHome(h *home.Dir) { p.home = h }

// CreateJob registers a job for one page request and starts processing it
// in the background. The returned job ID can be polled immediately.
func (p *Pipeline) CreateJob(bookID string, req story.PageRequest) string {
	id := p.jobs.Create(bookID, req.Page)
	delay := p.stagger(bookID, req.Page)
	go p.run(id, bookID, req, delay)
	return id
}

// stagger returns the start delay for a page job. The anchor job always
// starts immediately; page jobs within a book are spaced PageStagger apart
// in launch order.
func (p *Pipeline) stagger(bookID string, page int) time.Duration {
	if page == story.AnchorPage {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.launched[bookID]
	p.launched[bookID] = n + 1
	return time.Duration(n) * p.cfg.PageStagger
}

// ClearAll wipes every job record, anchor future, and cached character
// reference. New books start from a blank slate afterward.
func (p *Pipeline) ClearAll() {
	p.jobs.Clear()
	p.anchors.clear()
	p.refs.Flush()
	p.mu.Lock()
	p.launched = make(map[string]int)
	p.mu.Unlock()
}

// reference returns the best available likeness for a character, memoized
// per book. Today that is the uploaded photo when present; characters
// without one fall back to their text description in the prompt.
func (p *Pipeline) reference(bookID string, c story.CharacterRef) []byte {
	key := bookID + "/" + c.ID
	if v, ok := p.refs.Get(key); ok {
		return v.([]byte)
	}
	if len(c.PhotoPNG) == 0 {
		return nil
	}
	p.refs.SetDefault(key, c.PhotoPNG)
	return c.PhotoPNG
}

// blankCanvasPNG is the base image for description-only anchor synthesis,
// where there is no photo to edit.
func blankCanvasPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, compose.CanvasWidth, compose.CanvasHeight))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// withJobContext bounds a job's lifetime.
func (p *Pipeline) withJobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.cfg.JobTimeout)
}
