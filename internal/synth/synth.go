// Package synth wraps the external image-synthesis provider: the edit
// and inpaint operations the pipeline stages issue, bounded retry for
// transient failures, and the moderation-fallback rewrite path.
package synth

import "context"

// EditRequest describes a single synthesis call. Reference images ride
// along in order; the optional mask marks protected pixels (opaque) the
// provider must not alter.
type EditRequest struct {
	Prompt string

	// Images are PNG-encoded reference inputs. The first image is the
	// one being edited; the rest are identity references.
	Images [][]byte

	// MaskPNG, when set, constrains the edit: opaque pixels are
	// protected, transparent pixels editable.
	MaskPNG []byte

	// Size is the output dimension string, e.g. "1024x1024".
	Size string
}

// Client issues raw synthesis calls against a provider. Implementations
// translate provider errors into the package taxonomy: *ModerationError,
// *TransientError, *FatalError.
type Client interface {
	// Edit performs an image edit/inpaint and returns PNG bytes.
	Edit(ctx context.Context, req EditRequest) ([]byte, error)

	// Name identifies the provider for logging.
	Name() string
}

// Rewriter produces a policy-safe replacement for a rejected prompt.
type Rewriter interface {
	// Rewrite returns a semantically equivalent prompt with
	// policy-triggering phrasing removed. callContext carries a short
	// description of the stage/page/characters for better rewrites.
	Rewrite(ctx context.Context, prompt, callContext string) (string, error)
}
