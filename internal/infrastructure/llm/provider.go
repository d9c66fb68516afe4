// Package llm talks to text-generation providers. A Rotation walks the
// configured providers in order until one produces acceptable output;
// callers supply their own fallback when the whole rotation fails.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"NewsPipeline/internal/config"
)

// Provider generates text for a single prompt.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds a client for the configured provider kind. Providers
// without an API key come back nil and are skipped by the rotation.
func NewProvider(cfg config.ProviderConfig, client *http.Client) Provider {
	if cfg.APIKey == "" {
		return nil
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	switch cfg.Kind {
	case "openai":
		return &openAIClient{cfg: cfg, httpClient: client}
	case "gemini":
		return &geminiClient{cfg: cfg, httpClient: client}
	default:
		return nil
	}
}

// openAIClient posts to an OpenAI-compatible chat completions endpoint.
type openAIClient struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
}

var _ Provider = (*openAIClient)(nil)

func (c *openAIClient) Name() string { return c.cfg.Name }

func (c *openAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal openai payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// geminiClient posts to the Gemini generateContent endpoint.
type geminiClient struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
}

var _ Provider = (*geminiClient)(nil)

func (c *geminiClient) Name() string { return c.cfg.Name }

func (c *geminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

// Rotation tries providers in configured order, subject to per-provider
// rate budgets, and accepts the first output of sufficient length.
type Rotation struct {
	providers []rotationEntry
	limiter   *Limiter
	logger    *slog.Logger
}

type rotationEntry struct {
	provider Provider
	rpm      int
}

// NewRotation wires the configured providers. Providers that lack a key
// are dropped here, so an empty rotation is a valid (offline) state.
func NewRotation(cfgs []config.ProviderConfig, client *http.Client, logger *slog.Logger) *Rotation {
	r := &Rotation{limiter: NewLimiter(), logger: logger}
	for _, cfg := range cfgs {
		p := NewProvider(cfg, client)
		if p == nil {
			continue
		}
		r.providers = append(r.providers, rotationEntry{provider: p, rpm: cfg.RequestsPerMinute})
	}
	return r
}

// Available reports whether at least one provider is configured.
func (r *Rotation) Available() bool {
	return len(r.providers) > 0
}

// Generate walks the rotation and returns the first acceptable output.
// minLen is the caller's acceptance threshold: a category label needs
// only a non-empty answer while generated prose needs real length, so
// the gate belongs to the call, not the rotation. It fails only when
// every provider is exhausted, rate-limited, or produced output shorter
// than minLen.
func (r *Rotation) Generate(ctx context.Context, prompt string, minLen int) (string, error) {
	if minLen < 1 {
		minLen = 1
	}

	var lastErr error
	for _, entry := range r.providers {
		if !r.limiter.Allow(entry.provider.Name(), entry.rpm) {
			r.debug("provider over rate budget", "provider", entry.provider.Name())
			continue
		}

		out, err := entry.provider.Generate(ctx, prompt)
		if err != nil {
			r.debug("provider failed", "provider", entry.provider.Name(), "error", err)
			lastErr = err
			continue
		}
		if len(out) < minLen {
			r.debug("provider output too short", "provider", entry.provider.Name(), "len", len(out))
			lastErr = fmt.Errorf("%s output too short (%d chars)", entry.provider.Name(), len(out))
			continue
		}
		return out, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("all providers failed: %w", lastErr)
	}
	return "", fmt.Errorf("no provider available")
}

func (r *Rotation) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
