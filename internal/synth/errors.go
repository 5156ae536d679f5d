package synth

import (
	"fmt"
	"time"
)

// InputError marks invalid caller input (missing photo or description).
// It is never retried.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// ModerationError marks a prompt rejected by the provider's safety
// system. It is recoverable exactly once via the rewrite fallback.
type ModerationError struct {
	Message string
	Prompt  string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("prompt rejected by moderation: %s", e.Message)
}

// TransientError marks a retryable upstream failure (rate limit, gateway
// errors). RetryAfter is honored when the provider supplies one.
type TransientError struct {
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transient provider error: %s", e.Message)
}

// FatalError marks a non-retryable upstream failure; the job fails.
type FatalError struct {
	Message    string
	StatusCode int
}

func (e *FatalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}
