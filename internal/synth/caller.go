package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 2 * time.Second
)

// CallInfo identifies the call site for logging and for the context
// string handed to the rewriter.
type CallInfo struct {
	Stage      string
	Page       int
	Characters []string
}

func (i CallInfo) contextString() string {
	chars := "none"
	if len(i.Characters) > 0 {
		chars = strings.Join(i.Characters, ", ")
	}
	return fmt.Sprintf("children's storybook illustration, stage=%s, page=%d, characters=%s", i.Stage, i.Page, chars)
}

// CallResult carries the synthesized image plus recovery metadata.
type CallResult struct {
	ImagePNG []byte

	// RewrittenPrompt is set when the moderation fallback fired and the
	// successful call used a rewritten prompt.
	RewrittenPrompt string
}

// Caller wraps a Client with bounded transient retry, outbound rate
// smoothing, and the moderation-fallback rewrite path. All pipeline
// stages issue their synthesis calls through a Caller.
type Caller struct {
	client     Client
	rewriter   Rewriter
	limiter    *rate.Limiter
	logger     *slog.Logger
	attempts   uint
	retryDelay time.Duration
}

// CallerConfig configures a Caller.
type CallerConfig struct {
	Client Client

	// Rewriter handles moderation recovery. Nil is allowed: the static
	// substitution table is used directly.
	Rewriter Rewriter

	// RequestsPerSecond smooths outbound request rate. Zero disables
	// limiting.
	RequestsPerSecond float64

	Logger     *slog.Logger
	Attempts   uint          // transient retry attempts per call (default 3)
	RetryDelay time.Duration // base backoff delay (default 2s)
}

// NewCaller creates a Caller.
func NewCaller(cfg CallerConfig) *Caller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := cfg.RetryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Caller{
		client:     cfg.Client,
		rewriter:   cfg.Rewriter,
		limiter:    limiter,
		logger:     logger,
		attempts:   attempts,
		retryDelay: delay,
	}
}

// Edit issues a synthesis call. Transient errors are retried with
// backoff at this single-call granularity. A moderation rejection
// triggers exactly one rewrite-and-retry; if that also fails, the
// original moderation error is returned so diagnostics keep the real
// cause.
func (c *Caller) Edit(ctx context.Context, req EditRequest, info CallInfo) (*CallResult, error) {
	img, err := c.editWithRetry(ctx, req)
	if err == nil {
		return &CallResult{ImagePNG: img}, nil
	}

	var modErr *ModerationError
	if !errors.As(err, &modErr) {
		return nil, err
	}

	rewritten := c.rewritePrompt(ctx, req.Prompt, info)
	c.logger.Warn("synthesis call rejected by moderation, retrying with rewritten prompt",
		"stage", info.Stage, "page", info.Page, "provider", c.client.Name())

	retryReq := req
	retryReq.Prompt = rewritten
	img, retryErr := c.editWithRetry(ctx, retryReq)
	if retryErr != nil {
		c.logger.Error("moderation fallback retry failed",
			"stage", info.Stage, "page", info.Page, "error", retryErr)
		return nil, modErr
	}

	return &CallResult{ImagePNG: img, RewrittenPrompt: rewritten}, nil
}

// rewritePrompt obtains a policy-safe replacement, falling back to the
// static substitution table when the rewriting service is unavailable or
// returns an unusable answer.
func (c *Caller) rewritePrompt(ctx context.Context, prompt string, info CallInfo) string {
	if c.rewriter != nil {
		rewritten, err := c.rewriter.Rewrite(ctx, prompt, info.contextString())
		if err == nil && rewritten != prompt {
			return rewritten
		}
		if err != nil {
			c.logger.Warn("prompt rewriter unavailable, using static substitutions", "error", err)
		}
	}
	return StaticRewrite(prompt)
}

func (c *Caller) editWithRetry(ctx context.Context, req EditRequest) ([]byte, error) {
	var out []byte
	err := retry.Do(
		func() error {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			img, err := c.client.Edit(ctx, req)
			if err != nil {
				return err
			}
			out = img
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		// A provider-supplied Retry-After takes precedence over the
		// exponential backoff schedule.
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			var te *TransientError
			if errors.As(err, &te) && te.RetryAfter > 0 {
				return te.RetryAfter
			}
			return retry.BackOffDelay(n, err, config)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var te *TransientError
			return errors.As(err, &te)
		}),
	)
	if err != nil {
		return nil, err
	}
	return out, nil
}
