package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MichaelB312/storybook/internal/story"
)

func TestStoreLifecycle(t *testing.T) {
	s := NewStore(nil)

	id := s.Create("book-1", 1)
	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Status != StatusPending {
		t.Errorf("new job status = %s, want pending", rec.Status)
	}
	if rec.Progress != 0 {
		t.Errorf("new job progress = %d, want 0", rec.Progress)
	}

	if err := s.SetProcessing(id); err != nil {
		t.Fatalf("SetProcessing() error = %v", err)
	}
	s.SetProgress(id, 40)

	if err := s.Complete(id, &story.PageResult{Page: 1, ImagePNG: []byte("img")}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rec, _ = s.Get(id)
	if rec.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", rec.Status)
	}
	if rec.Progress != 100 {
		t.Errorf("progress = %d, want 100", rec.Progress)
	}
	if rec.Result == nil || len(rec.Result.ImagePNG) == 0 {
		t.Error("expected non-empty result")
	}
	if rec.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestStoreReadsCarryElapsed(t *testing.T) {
	s := NewStore(nil)

	id := s.Create("book-1", 1)
	if err := s.SetProcessing(id); err != nil {
		t.Fatalf("SetProcessing() error = %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := s.Complete(id, &story.PageResult{Page: 1}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.ElapsedMS <= 0 {
		t.Errorf("Get() ElapsedMS = %d, want > 0", rec.ElapsedMS)
	}
	if rec.ElapsedMS != rec.CompletedAt.Sub(rec.StartedAt).Milliseconds() {
		t.Errorf("terminal ElapsedMS = %d, want the completed duration", rec.ElapsedMS)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"elapsed_ms"`) {
		t.Errorf("serialized record missing elapsed_ms: %s", data)
	}

	list := s.List()
	if len(list) != 1 || list[0].ElapsedMS <= 0 {
		t.Error("List() should carry ElapsedMS on every record")
	}
}

func TestStoreGetUnknown(t *testing.T) {
	s := NewStore(nil)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreTransitionsAreMonotonic(t *testing.T) {
	s := NewStore(nil)

	t.Run("cannot process twice", func(t *testing.T) {
		id := s.Create("b", 1)
		if err := s.SetProcessing(id); err != nil {
			t.Fatal(err)
		}
		if err := s.SetProcessing(id); err == nil {
			t.Error("expected error on processing -> processing")
		}
	})

	t.Run("cannot leave terminal state", func(t *testing.T) {
		id := s.Create("b", 1)
		_ = s.SetProcessing(id)
		if err := s.Fail(id, "boom"); err != nil {
			t.Fatal(err)
		}
		if err := s.Complete(id, nil); err == nil {
			t.Error("expected error on failed -> completed")
		}
		if err := s.Fail(id, "again"); err == nil {
			t.Error("expected error on failed -> failed")
		}
	})
}

func TestStoreProgressNeverDecreases(t *testing.T) {
	s := NewStore(nil)
	id := s.Create("b", 1)
	_ = s.SetProcessing(id)

	s.SetProgress(id, 55)
	s.SetProgress(id, 30) // ignored
	rec, _ := s.Get(id)
	if rec.Progress != 55 {
		t.Errorf("progress = %d, want 55", rec.Progress)
	}

	s.SetProgress(id, 200)
	rec, _ = s.Get(id)
	if rec.Progress != 100 {
		t.Errorf("progress = %d, want clamped to 100", rec.Progress)
	}

	_ = s.Complete(id, nil)
	s.SetProgress(id, 10) // ignored after terminal
	rec, _ = s.Get(id)
	if rec.Progress != 100 {
		t.Errorf("progress after terminal = %d, want 100", rec.Progress)
	}
}

func TestStoreFailureIsShortString(t *testing.T) {
	s := NewStore(nil)
	id := s.Create("b", 2)
	_ = s.SetProcessing(id)
	_ = s.Fail(id, "prompt rejected by moderation: unsafe content")

	rec, _ := s.Get(id)
	if rec.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if rec.Error == "" {
		t.Error("expected error string")
	}
	if rec.Result != nil {
		t.Error("failed job must not carry a result")
	}
}

func TestStoreSweep(t *testing.T) {
	s := NewStore(nil)
	oldID := s.Create("b", 1)
	newID := s.Create("b", 2)

	// Backdate the first record past the TTL.
	s.mu.Lock()
	s.jobs[oldID].StartedAt = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	evicted := s.Sweep(time.Hour)
	if evicted != 1 {
		t.Errorf("Sweep() evicted = %d, want 1", evicted)
	}
	if _, err := s.Get(oldID); !errors.Is(err, ErrNotFound) {
		t.Error("stale job should be gone")
	}
	if _, err := s.Get(newID); err != nil {
		t.Errorf("fresh job should remain, got %v", err)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore(nil)
	s.Create("b", 1)
	s.Create("b", 2)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", s.Len())
	}
}

func TestStoreList(t *testing.T) {
	s := NewStore(nil)
	s.Create("b", 1)
	s.Create("b", 2)
	if got := len(s.List()); got != 2 {
		t.Errorf("List() len = %d, want 2", got)
	}
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	s := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.RunSweeper(ctx, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
