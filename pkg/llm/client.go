// Package llm is the LLM Client & Agents component (spec §4.5): a
// thin chat-completion HTTP client with primary/fallback backend
// dispatch, plus the two fixed higher-level agents (classifier,
// synthesizer) built on top of it. Grounded on pkg/perf's oracle-client
// shape for the transport, and on rohmanhakim-docs-crawler's
// pkg/retry/handler.go idiom (now pkg/retryutil) for the
// primary-then-fallback retry the spec calls for.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geoauditlabs/geo-audit-core/pkg/errs"
)

// Backend is one chat-completion endpoint configuration (primary or
// fallback), mirroring config.LLMBackendConfig.
type Backend struct {
	Name  string
	URL   string
	Key   string
	Model string
}

// Client dispatches chat-completion calls across a primary backend
// and an optional fallback (spec §4.5: "on a transient failure of the
// primary, one retry against the fallback is attempted").
type Client struct {
	Primary  Backend
	Fallback *Backend
	Timeout  time.Duration

	httpClient *http.Client
}

// New constructs a Client. timeout is the per-call wall-clock budget
// (spec §6 "120s per call").
func New(primary Backend, fallback *Backend, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		Primary:    primary,
		Fallback:   fallback,
		Timeout:    timeout,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Call sends one chat-completion request to the primary backend; on a
// retryable failure it retries once against the fallback backend if
// one is configured (spec §4.5). Returns the assistant message
// content, or a llm_unavailable error if both backends failed (or no
// fallback was configured).
func (c *Client) Call(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	content, err := c.callBackend(ctx, c.Primary, system, user, maxTokens, temperature)
	if err == nil {
		return content, nil
	}
	if !errs.Retryable(err) || c.Fallback == nil {
		return "", errs.Wrap(errs.KindLLMUnavailable, "primary LLM backend failed", err)
	}

	content, fallbackErr := c.callBackend(ctx, *c.Fallback, system, user, maxTokens, temperature)
	if fallbackErr != nil {
		return "", errs.Wrap(errs.KindLLMUnavailable, "primary and fallback LLM backends failed", fallbackErr)
	}
	return content, nil
}

func (c *Client) callBackend(ctx context.Context, backend Backend, system, user string, maxTokens int, temperature float64) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	reqBody, err := json.Marshal(chatRequest{
		Model: backend.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidConfig, "encoding chat request", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, backend.URL, bytes.NewReader(reqBody))
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidConfig, "building chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if backend.Key != "" {
		req.Header.Set("Authorization", "Bearer "+backend.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if callCtx.Err() != nil {
			return "", errs.Wrap(errs.KindTimeout, "chat call timed out", callCtx.Err())
		}
		return "", errs.Wrap(errs.KindNetwork, "chat call failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(errs.KindNetwork, "reading chat response", err)
	}

	if kind := classifyStatus(resp.StatusCode); kind != "" {
		return "", errs.New(kind, fmt.Sprintf("chat endpoint returned status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errs.Wrap(errs.KindParseError, "decoding chat response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errs.New(errs.KindParseError, "chat response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyStatus(code int) errs.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return errs.KindRateLimited
	case code >= 500:
		return errs.KindHTTP5xx
	case code >= 400:
		return errs.KindHTTP4xx
	default:
		return ""
	}
}
