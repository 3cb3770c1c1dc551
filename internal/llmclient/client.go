// Package llmclient wraps sashabaranov/go-openai with the retry and timeout
// policy the journaling core needs: a bounded number of retries on transport
// failure and 5xx responses only (never on a 4xx error response), and a hard
// per-call deadline.
package llmclient

import (
	"context"
	"errors"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ghiac/journal/internal/apierr"
	"github.com/ghiac/journal/internal/config"
	"github.com/ghiac/journal/internal/journallog"
)

const maxRetries = 2

// Client is the journaling core's sole LLM transport. AgentRuntime and
// Structurer both depend on it rather than on *openai.Client directly; tests
// point a Client at a stub HTTP server through LLMConfig.BaseURL.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New builds a Client from LLM configuration.
func New(cfg config.LLMConfig) *Client {
	oaCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(oaCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}
}

// ChatCompletion issues one chat completion call, retrying transport
// failures (connection errors, deadline exceeded) and 5xx responses up to
// maxRetries times with exponential backoff. A 4xx error response from the
// API (bad request, auth failure) is never retried.
func (c *Client) ChatCompletion(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	}
	if len(tools) > 0 {
		req.Tools = tools
	}

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= maxRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			if len(resp.Choices) == 0 {
				lastErr = errors.New("llmclient: empty choices in response")
				break
			}
			return resp.Choices[0].Message, nil
		}
		lastErr = err
		if !isTransportError(err) {
			break
		}
		journallog.Log.Warnf("llmclient: transport error on attempt %d/%d: %v", attempt+1, maxRetries+1, err)
		if attempt < maxRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return openai.ChatCompletionMessage{}, apierr.UpstreamTimeout(ctx.Err())
			}
			backoff *= 2
		}
	}

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return openai.ChatCompletionMessage{}, apierr.UpstreamTimeout(lastErr)
	}
	return openai.ChatCompletionMessage{}, apierr.UpstreamUnavailable(lastErr)
}

// isTransportError reports whether err is worth retrying: a connectivity
// failure or a 5xx API error response, as opposed to a 4xx one.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	return true
}
