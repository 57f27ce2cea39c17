package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lumina/internal/config"
	"lumina/internal/domain"
)

const (
	// defaultTimeout applies to non-streaming completion calls.
	defaultTimeout = 120 * time.Second

	// scanBufferSize caps one SSE line; tool-argument chunks stay far below this.
	scanBufferSize = 1 << 20
)

// Client talks to the hosted model gateway over its OpenAI-compatible API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

// NewClient creates a gateway client from config.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GatewayBaseURL, "/"),
		apiKey:  cfg.GatewayAPIKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		retry: RetryPolicy{
			MaxAttempts: config.GatewayMaxAttempts,
			BaseDelay:   config.GatewayRetryBaseDelay,
			Notify: func(err error, delay time.Duration) {
				logger.Warn("gateway call retrying", "error", err, "delay", delay)
			},
		},
		logger: logger,
	}
}

// CreateCompletion issues a non-streaming completion call.
func (c *Client) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	req.Stream = false

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp.StatusCode, body)
	}

	var completion CompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, &domain.UpstreamError{Message: "gateway returned no choices"}
	}

	return &completion, nil
}

// StreamCompletion issues a streaming completion call and returns a channel of
// parsed chunks. The channel closes after the terminal [DONE] marker or a
// transport error, whichever comes first. The caller owns ctx; cancelling it
// tears the stream down.
func (c *Client) StreamCompletion(ctx context.Context, req *CompletionRequest) (<-chan StreamEvent, error) {
	req.Stream = true

	resp, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, c.statusError(resp.StatusCode, body)
	}

	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, ":") {
				continue // keepalive comment or event separator
			}

			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)

			if data == "[DONE]" {
				return
			}

			var chunk StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				c.logger.Warn("skipping malformed stream chunk", "error", err)
				continue
			}

			select {
			case events <- StreamEvent{Chunk: &chunk}:
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			// Mid-stream transport failure: the gateway truncated the body.
			events <- StreamEvent{Err: fmt.Errorf("%w: %v", domain.ErrStreamTransport, err)}
		}
		// EOF without [DONE] is also a truncation; the consumer recovers what
		// it can from its accumulated buffer.
	}()

	return events, nil
}

// post sends the completion request under the retry policy.
func (c *Client) post(ctx context.Context, req *CompletionRequest) (*http.Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}

	resp, err := c.retry.Do(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		if req.Stream {
			httpReq.Header.Set("Accept", "text/event-stream")
		}

		return c.httpClient.Do(httpReq)
	})
	if err != nil {
		var statusErr *retryableStatusError
		if errors.As(err, &statusErr) {
			return nil, c.statusError(statusErr.status, nil)
		}
		return nil, &domain.UpstreamError{Message: fmt.Sprintf("gateway unreachable: %v", err)}
	}

	return resp, nil
}

// statusError maps terminal gateway statuses to domain errors.
func (c *Client) statusError(status int, body []byte) error {
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		detail = http.StatusText(status)
	}
	c.logger.Error("gateway error", "status", status, "body", detail)

	switch {
	case status == http.StatusTooManyRequests:
		return &domain.UpstreamRateLimitedError{Message: "model gateway rate limited"}
	case status == http.StatusPaymentRequired:
		return &domain.UpstreamPaymentRequiredError{Message: "model gateway payment required"}
	default:
		return &domain.UpstreamError{Message: fmt.Sprintf("model gateway error (status %d)", status)}
	}
}
