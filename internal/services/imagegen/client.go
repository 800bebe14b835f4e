package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/services"
)

const defaultHTTPTimeout = 120 * time.Second

// ErrUnavailable signals the image backend is disabled or unreachable. The
// media stage treats it as a cue to fall back to a placeholder cover.
var ErrUnavailable = errors.New("image backend unavailable")

// Renderer produces cover images from text prompts.
type Renderer interface {
	Render(ctx context.Context, prompt string) ([]byte, error)
	Enabled() bool
}

// Client wraps an OpenAI-compatible image generation API.
type Client struct {
	enabled    bool
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an image generation client from configuration.
func NewClient(cfg config.ImageGen, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		enabled:    cfg.Enabled,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Enabled reports whether the backend is configured for use.
func (c *Client) Enabled() bool {
	return c != nil && c.enabled && c.baseURL != ""
}

type imageRequest struct {
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Render submits the prompt and returns the decoded image bytes. Backend
// outages surface as ErrUnavailable rather than a recoverable stage error so
// the caller can degrade instead of retrying.
func (c *Client) Render(ctx context.Context, prompt string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, services.Wrap(services.ErrValidation, "imagegen", "render", "prompt is required", nil)
	}

	endpoint, err := url.JoinPath(c.baseURL, "/images/generations")
	if err != nil {
		return nil, fmt.Errorf("imagegen request: build url: %w", err)
	}
	encoded, err := json.Marshal(imageRequest{
		Prompt:         prompt,
		Size:           "1024x1024",
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("imagegen request: new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("imagegen request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrFatal, "imagegen", "render",
			fmt.Sprintf("backend returned http %d", resp.StatusCode), errors.New(strings.TrimSpace(string(body))))
	}

	var decoded imageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("imagegen request: decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("imagegen request: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].B64JSON) == "" {
		return nil, fmt.Errorf("%w: empty image payload", ErrUnavailable)
	}
	image, err := base64.StdEncoding.DecodeString(decoded.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("imagegen request: decode image: %w", err)
	}
	return image, nil
}
