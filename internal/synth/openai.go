package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// OpenAIName identifies the default provider.
	OpenAIName = "openai"

	openAIDefaultImageModel = "gpt-image-1"
)

// OpenAIConfig holds configuration for the OpenAI synthesis client.
type OpenAIConfig struct {
	APIKey     string
	Model      string        // "gpt-image-1" (default)
	Timeout    time.Duration // HTTP timeout
	BaseURL    string        // Optional (tests)
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements Client using the official OpenAI SDK's image
// edit API.
type OpenAIClient struct {
	model  string
	client openai.Client
}

// NewOpenAIClient creates a new OpenAI synthesis client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = openAIDefaultImageModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		// Retry classification lives in Caller; SDK retries would hide
		// moderation rejections behind generic failures.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		model:  cfg.Model,
		client: openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// Edit performs an image edit/inpaint call and returns PNG bytes.
func (c *OpenAIClient) Edit(ctx context.Context, req EditRequest) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &InputError{Message: "prompt is required"}
	}
	if len(req.Images) == 0 {
		return nil, &InputError{Message: "at least one input image is required"}
	}

	readers := make([]io.Reader, len(req.Images))
	for i, img := range req.Images {
		readers[i] = openai.File(bytes.NewReader(img), fmt.Sprintf("image_%d.png", i), "image/png")
	}

	params := openai.ImageEditParams{
		Image:  openai.ImageEditParamsImageUnion{OfFileArray: readers},
		Prompt: req.Prompt,
		Model:  openai.ImageModel(c.model),
		N:      openai.Int(1),
		Size:   normalizeEditSize(req.Size),
	}
	if len(req.MaskPNG) > 0 {
		params.Mask = openai.File(bytes.NewReader(req.MaskPNG), "mask.png", "image/png")
	}

	resp, err := c.client.Images.Edit(ctx, params)
	if err != nil {
		return nil, mapOpenAIError(err, req.Prompt)
	}
	if len(resp.Data) == 0 {
		return nil, &TransientError{Message: "provider returned no images"}
	}

	data, err := decodeImagePayload(ctx, c.client, resp.Data[0])
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &TransientError{Message: "provider returned an empty image"}
	}
	return data, nil
}

func decodeImagePayload(ctx context.Context, client openai.Client, img openai.Image) ([]byte, error) {
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, &FatalError{Message: fmt.Sprintf("failed to decode image payload: %v", err)}
		}
		return data, nil
	}
	if img.URL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
		if err != nil {
			return nil, &FatalError{Message: fmt.Sprintf("failed to build image download request: %v", err)}
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, &TransientError{Message: fmt.Sprintf("image download failed: %v", err)}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &TransientError{Message: fmt.Sprintf("image download status %d", resp.StatusCode), StatusCode: resp.StatusCode}
		}
		return io.ReadAll(resp.Body)
	}
	return nil, nil
}

func normalizeEditSize(size string) openai.ImageEditParamsSize {
	switch size {
	case "", "1024x1024":
		return openai.ImageEditParamsSize1024x1024
	case "1536x1024":
		return openai.ImageEditParamsSize1536x1024
	case "1024x1536":
		return openai.ImageEditParamsSize1024x1536
	default:
		return openai.ImageEditParamsSizeAuto
	}
}

// mapOpenAIError translates SDK errors into the package taxonomy.
func mapOpenAIError(err error, prompt string) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Transport-level failure; worth retrying.
		return &TransientError{Message: err.Error()}
	}

	if isModerationRejection(apiErr) {
		return &ModerationError{Message: apiErr.Message, Prompt: prompt}
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if apiErr.Response != nil {
			retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return &TransientError{Message: apiErr.Message, StatusCode: apiErr.StatusCode, RetryAfter: retryAfter}
	case apiErr.StatusCode >= 500:
		return &TransientError{Message: apiErr.Message, StatusCode: apiErr.StatusCode}
	default:
		return &FatalError{Message: apiErr.Message, StatusCode: apiErr.StatusCode}
	}
}

// isModerationRejection detects safety-system rejections, which the API
// reports as 400s with a handful of code/message shapes.
func isModerationRejection(apiErr *openai.Error) bool {
	if apiErr.StatusCode != http.StatusBadRequest {
		return false
	}
	code := strings.ToLower(apiErr.Code)
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(code, "moderation") ||
		strings.Contains(code, "content_policy") ||
		strings.Contains(msg, "safety system") ||
		strings.Contains(msg, "content policy")
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

var _ Client = (*OpenAIClient)(nil)
