package synth

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func testCaller(client Client, rewriter Rewriter) *Caller {
	return NewCaller(CallerConfig{
		Client:     client,
		Rewriter:   rewriter,
		Attempts:   3,
		RetryDelay: time.Millisecond,
	})
}

func TestCallerEditSuccess(t *testing.T) {
	mock := NewMockClient()
	caller := testCaller(mock, &MockRewriter{})

	res, err := caller.Edit(context.Background(), EditRequest{Prompt: "a baby", Images: [][]byte{{1}}}, CallInfo{Stage: "variant", Page: 1})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if !bytes.Equal(res.ImagePNG, mock.Image) {
		t.Error("unexpected image payload")
	}
	if res.RewrittenPrompt != "" {
		t.Errorf("RewrittenPrompt = %q, want empty", res.RewrittenPrompt)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", mock.CallCount())
	}
}

func TestCallerRetriesTransientErrors(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith(
		&TransientError{Message: "rate limited", StatusCode: 429},
		&TransientError{Message: "bad gateway", StatusCode: 502},
	)
	caller := testCaller(mock, &MockRewriter{})

	res, err := caller.Edit(context.Background(), EditRequest{Prompt: "p", Images: [][]byte{{1}}}, CallInfo{})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if len(res.ImagePNG) == 0 {
		t.Error("expected image after retries")
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", mock.CallCount())
	}
}

func TestCallerHonorsRetryAfter(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith(&TransientError{Message: "rate limited", StatusCode: 429, RetryAfter: 60 * time.Millisecond})
	caller := testCaller(mock, &MockRewriter{})

	start := time.Now()
	_, err := caller.Edit(context.Background(), EditRequest{Prompt: "p", Images: [][]byte{{1}}}, CallInfo{})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("retry after %v, want at least the provider's 60ms Retry-After", elapsed)
	}
	if mock.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2", mock.CallCount())
	}
}

func TestCallerExhaustsTransientRetries(t *testing.T) {
	mock := NewMockClient()
	mock.Err = &TransientError{Message: "still down", StatusCode: 503}
	caller := testCaller(mock, &MockRewriter{})

	_, err := caller.Edit(context.Background(), EditRequest{Prompt: "p", Images: [][]byte{{1}}}, CallInfo{})
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransientError, got %T: %v", err, err)
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount = %d, want 3", mock.CallCount())
	}
}

func TestCallerDoesNotRetryFatalErrors(t *testing.T) {
	mock := NewMockClient()
	mock.Err = &FatalError{Message: "invalid image", StatusCode: 400}
	caller := testCaller(mock, &MockRewriter{})

	_, err := caller.Edit(context.Background(), EditRequest{Prompt: "p", Images: [][]byte{{1}}}, CallInfo{})
	var fe *FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1 (no retry)", mock.CallCount())
	}
}

func TestCallerModerationFallback(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith(&ModerationError{Message: "rejected", Prompt: "original"})
	rewriter := &MockRewriter{Result: "safe version"}
	caller := testCaller(mock, rewriter)

	res, err := caller.Edit(context.Background(), EditRequest{Prompt: "original", Images: [][]byte{{1}}}, CallInfo{Stage: "variant", Page: 2, Characters: []string{"baby", "mom"}})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.RewrittenPrompt != "safe version" {
		t.Errorf("RewrittenPrompt = %q, want %q", res.RewrittenPrompt, "safe version")
	}
	if res.RewrittenPrompt == "original" {
		t.Error("rewritten prompt must differ from the original")
	}
	if rewriter.CallCount() != 1 {
		t.Errorf("rewriter calls = %d, want exactly 1", rewriter.CallCount())
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("CallCount = %d, want 2", len(calls))
	}
	if calls[1].Prompt != "safe version" {
		t.Errorf("retry prompt = %q, want rewritten", calls[1].Prompt)
	}
}

func TestCallerModerationFallbackPreservesOriginalError(t *testing.T) {
	mock := NewMockClient()
	original := &ModerationError{Message: "first rejection", Prompt: "p"}
	mock.FailWith(original, &ModerationError{Message: "second rejection", Prompt: "p2"})
	caller := testCaller(mock, &MockRewriter{})

	_, err := caller.Edit(context.Background(), EditRequest{Prompt: "p", Images: [][]byte{{1}}}, CallInfo{})
	var modErr *ModerationError
	if !errors.As(err, &modErr) {
		t.Fatalf("expected *ModerationError, got %T: %v", err, err)
	}
	if modErr.Message != "first rejection" {
		t.Errorf("error = %q, want the original rejection preserved", modErr.Message)
	}
	if mock.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2 (single fallback retry)", mock.CallCount())
	}
}

func TestCallerStaticFallbackWhenRewriterUnavailable(t *testing.T) {
	mock := NewMockClient()
	mock.FailWith(&ModerationError{Message: "rejected", Prompt: "baby with bare feet"})
	rewriter := &MockRewriter{Err: errors.New("service down")}
	caller := testCaller(mock, rewriter)

	res, err := caller.Edit(context.Background(), EditRequest{Prompt: "baby with bare feet", Images: [][]byte{{1}}}, CallInfo{})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if res.RewrittenPrompt == "baby with bare feet" {
		t.Error("static rewrite must change the prompt")
	}
	if !strings.Contains(res.RewrittenPrompt, "little feet") {
		t.Errorf("expected static substitution, got %q", res.RewrittenPrompt)
	}
}

func TestStaticRewriteAlwaysChangesPrompt(t *testing.T) {
	prompts := []string{
		"baby with bare tummy on a blanket",
		"a perfectly innocent prompt",
		"baby bathing in a tub",
	}
	for _, p := range prompts {
		t.Run(p, func(t *testing.T) {
			out := StaticRewrite(p)
			if out == p {
				t.Errorf("StaticRewrite(%q) returned input unchanged", p)
			}
		})
	}
}
