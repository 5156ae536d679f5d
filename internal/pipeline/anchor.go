package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDependencyUnavailable is returned when a page job's bounded wait for
// its book's character anchor expires. Page jobs never issue a synthesis
// call without an anchor.
var ErrDependencyUnavailable = errors.New("character anchor unavailable")

// anchorSlot is a single-assignment future for a book's character anchor.
// It resolves at most once, on anchor success only; anchor failure leaves
// waiters to time out on their own bounded wait.
type anchorSlot struct {
	once  sync.Once
	ready chan struct{}
	img   []byte
}

func newAnchorSlot() *anchorSlot {
	return &anchorSlot{ready: make(chan struct{})}
}

// resolve publishes the anchor cutout. Subsequent calls are no-ops; the
// anchor is immutable after creation.
func (s *anchorSlot) resolve(img []byte) {
	s.once.Do(func() {
		s.img = img
		close(s.ready)
	})
}

// await blocks until the anchor is available, the timeout expires, or the
// context is cancelled.
func (s *anchorSlot) await(ctx context.Context, timeout time.Duration) ([]byte, error) {
	select {
	case <-s.ready:
		return s.img, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.ready:
		return s.img, nil
	case <-timer.C:
		return nil, ErrDependencyUnavailable
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// anchorRegistry maps bookID to its anchor future. Slots are created
// lazily on first touch so a page job can begin waiting before the anchor
// job has registered.
type anchorRegistry struct {
	mu    sync.Mutex
	slots map[string]*anchorSlot
}

func newAnchorRegistry() *anchorRegistry {
	return &anchorRegistry{slots: make(map[string]*anchorSlot)}
}

func (r *anchorRegistry) slot(bookID string) *anchorSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[bookID]
	if !ok {
		s = newAnchorSlot()
		r.slots[bookID] = s
	}
	return s
}

func (r *anchorRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots = make(map[string]*anchorSlot)
}
