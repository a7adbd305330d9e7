// Package llm provides the Ollama HTTP client used for intent analysis,
// insurance disambiguation, followup classification, and the secondary
// vision evaluation. The client is process-wide and safe for concurrent
// use; it carries no per-session state.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sasya-arogya/engine/pkg/config"
)

// Client talks to an Ollama server over HTTP.
type Client struct {
	host          string
	model         string
	visionModel   string
	timeout       time.Duration
	visionTimeout time.Duration
	httpClient    *http.Client
}

// NewClient builds a client from configuration. Timeouts are enforced
// per call via context deadlines, not on the shared http.Client.
func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		host:          strings.TrimRight(cfg.Host, "/"),
		model:         cfg.Model,
		visionModel:   cfg.VisionModel,
		timeout:       cfg.Timeout,
		visionTimeout: cfg.VisionTimeout,
		httpClient:    &http.Client{},
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Stream bool     `json:"stream"`
	Format string   `json:"format,omitempty"`
	Images []string `json:"images,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate returns a text completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, generateRequest{
		Model:  c.model,
		Prompt: prompt,
	}, c.timeout)
}

// GenerateJSON returns a completion constrained to JSON output. Callers
// still validate the decoded structure; models occasionally wrap the
// object in prose.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
	}, c.timeout)
}

// GenerateWithImage runs the vision model over a base64-encoded image.
// Vision inference is slow; it gets the longer timeout budget.
func (c *Client) GenerateWithImage(ctx context.Context, prompt, imageB64 string) (string, error) {
	return c.generate(ctx, generateRequest{
		Model:  c.visionModel,
		Prompt: prompt,
		Images: []string{imageB64},
	}, c.visionTimeout)
}

func (c *Client) generate(ctx context.Context, req generateRequest, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// ExtractJSON pulls the first JSON object out of a completion. Models
// sometimes prefix the object with commentary even in JSON mode.
func ExtractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
