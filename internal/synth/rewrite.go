package synth

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const rewriteSystemPrompt = `You rewrite image-generation prompts that were rejected by a safety system.
Preserve the visual intent exactly: same characters, same pose, same scene.
Remove or rephrase only the terms likely to trigger a policy filter.
Reply with the rewritten prompt and nothing else.`

// LLMRewriter asks a chat model to produce a policy-safe replacement for
// a rejected prompt.
type LLMRewriter struct {
	model  string
	client openai.Client
}

// LLMRewriterConfig configures the rewriting service.
type LLMRewriterConfig struct {
	APIKey     string
	Model      string // "gpt-4o-mini" (default)
	Timeout    time.Duration
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// NewLLMRewriter creates a rewriter backed by a chat completion model.
func NewLLMRewriter(cfg LLMRewriterConfig) *LLMRewriter {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMRewriter{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Rewrite asks the model for a policy-safe rewrite. The result is
// guaranteed different from the input; an unchanged reply is treated as
// a rewriter failure so the caller falls through to the static table.
func (r *LLMRewriter) Rewrite(ctx context.Context, prompt, callContext string) (string, error) {
	user := fmt.Sprintf("Context: %s\n\nRejected prompt:\n%s", callContext, prompt)

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(rewriteSystemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("rewrite returned no choices")
	}

	rewritten := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rewritten == "" {
		return "", fmt.Errorf("rewrite returned an empty prompt")
	}
	if rewritten == strings.TrimSpace(prompt) {
		return "", fmt.Errorf("rewrite returned the prompt unchanged")
	}
	return rewritten, nil
}

var _ Rewriter = (*LLMRewriter)(nil)

// staticSubstitutions is the fallback rewrite table applied when the
// rewriting service is unavailable. Patterns target phrasing that
// commonly trips image-safety filters on innocent children's-book
// content.
var staticSubstitutions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)\bbare\s+(skin|feet|tummy|belly|arms|legs)\b`), "little $1"},
	{regexp.MustCompile(`(?i)\bnaked\b`), "wearing a soft onesie"},
	{regexp.MustCompile(`(?i)\bbath(ing)?\b`), "splashing playfully"},
	{regexp.MustCompile(`(?i)\bshooting\b`), "tossing"},
	{regexp.MustCompile(`(?i)\bgun\b`), "toy"},
	{regexp.MustCompile(`(?i)\bknife\b`), "spoon"},
	{regexp.MustCompile(`(?i)\bblood\b`), "red paint"},
	{regexp.MustCompile(`(?i)\bfight(ing)?\b`), "playing"},
}

// StaticRewrite applies the substitution table. When no rule fires it
// appends a softening clause so the result always differs from the
// input, keeping the retry meaningful.
func StaticRewrite(prompt string) string {
	out := prompt
	for _, sub := range staticSubstitutions {
		out = sub.pattern.ReplaceAllString(out, sub.replacement)
	}
	if out == prompt {
		out = prompt + " Gentle, wholesome children's book illustration."
	}
	return out
}
