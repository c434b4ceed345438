// Package imagegen renders carousel slide artwork through a text-to-image
// API. Visual-pack tier only; callers gate access before reaching here.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/threadforge/threadforge/internal/faults"
)

// Request describes one rendering job.
type Request struct {
	Prompt  string
	Width   int
	Height  int
	Samples int
	Steps   int
}

// Client calls a Stability-style text-to-image endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an image generation client with a bounded timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

type textPrompt struct {
	Text string `json:"text"`
}

type apiResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// Render returns one or more base64-encoded PNGs for the request.
// Defaults: 1080x1080, one sample, 30 steps.
func (c *Client) Render(ctx context.Context, req Request) ([]string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, faults.ErrEmptyContent
	}
	if req.Width <= 0 {
		req.Width = 1080
	}
	if req.Height <= 0 {
		req.Height = 1080
	}
	if req.Samples <= 0 {
		req.Samples = 1
	}
	if req.Steps <= 0 {
		req.Steps = 30
	}

	body, err := json.Marshal(apiRequest{
		TextPrompts: []textPrompt{{Text: req.Prompt}},
		Width:       req.Width,
		Height:      req.Height,
		Samples:     req.Samples,
		Steps:       req.Steps,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/generation/stable-diffusion-xl-1024-v1-0/text-to-image", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, faults.Transientf("image API: %v", err)
	}
	defer resp.Body.Close()

	if classified := faults.ClassifyStatus(resp.StatusCode); classified != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: image API returned %d: %s", classified, resp.StatusCode, string(snippet))
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image API returned %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Artifacts) == 0 {
		return nil, fmt.Errorf("image API returned no artifacts")
	}

	images := make([]string, 0, len(parsed.Artifacts))
	for _, a := range parsed.Artifacts {
		images = append(images, a.Base64)
	}
	return images, nil
}
