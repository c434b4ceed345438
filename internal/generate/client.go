package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/threadforge/threadforge/internal/faults"
)

// GenerationError wraps any upstream failure of the content requester.
// The cause keeps its taxonomy class for errors.Is checks.
type GenerationError struct {
	Detail string
	Err    error
}

func (e *GenerationError) Error() string {
	return "generation failed: " + e.Detail
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Client calls a Gemini-style generateContent API. Models are an ordered
// preference list tried until one succeeds; a rate-limited key stops the
// whole attempt because every model shares the same quota.
type Client struct {
	baseURL    string
	apiKey     string
	models     []string
	httpClient *http.Client
}

// NewClient creates an upstream text-generation client with a bounded
// per-call timeout.
func NewClient(baseURL, apiKey string, models []string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		models:     models,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Generate submits the prompt and returns the model's text trimmed of
// surrounding whitespace. Transient failures are retried once per model
// before falling through to the next; rate limits surface immediately and
// are never auto-retried.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for i, model := range c.models {
		text, err := c.generateOnce(ctx, model, prompt)
		if err == nil {
			if i > 0 {
				log.Printf("✅ Fallback to model %s succeeded", model)
			}
			return text, nil
		}

		if faults.IsRetryable(err) {
			log.Printf("⚠️ Model %s transient failure, retrying once: %v", model, err)
			if text, retryErr := c.generateOnce(ctx, model, prompt); retryErr == nil {
				return text, nil
			} else {
				err = retryErr
			}
		}

		if errors.Is(err, faults.ErrRateLimited) {
			// Quota errors are for the human to retry later.
			return "", &GenerationError{Detail: "rate limited by upstream", Err: err}
		}

		log.Printf("⚠️ Model %s failed: %v", model, err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no models configured")
	}
	return "", &GenerationError{Detail: lastErr.Error(), Err: lastErr}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generateOnce(ctx context.Context, model, prompt string) (string, error) {
	payload := generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable.
		return "", faults.Transientf("model %s: %v", model, err)
	}
	defer resp.Body.Close()

	if classified := faults.ClassifyStatus(resp.StatusCode); classified != nil {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: model %s returned %d: %s", classified, model, resp.StatusCode, string(snippet))
	}
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("model %s returned %d: %s", model, resp.StatusCode, string(snippet))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("model %s returned no candidates", model)
	}

	var sb strings.Builder
	for _, p := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
