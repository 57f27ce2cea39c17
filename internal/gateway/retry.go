package gateway

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy wraps a single outbound HTTP call with bounded exponential
// backoff. HTTP 429, 5xx and transport errors are retried; any other status is
// returned to the caller as-is (client-caused, non-transient). Exhausting the
// attempt budget surfaces the last error.
type RetryPolicy struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // first delay; doubles per attempt, no jitter

	// Notify observes each backoff delay before it is slept. Used for logging
	// and by tests; may be nil.
	Notify backoff.Notify
}

// retryableStatusError signals the backoff loop that the response status was
// transient. It carries the status for the exhaustion error message.
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable upstream status %d", e.status)
}

// Do executes op under the policy and returns the first response that is
// either successful or non-retryable. Response bodies of retried attempts are
// drained and closed; the returned response's body is the caller's to close.
func (p RetryPolicy) Do(op func() (*http.Response, error)) (*http.Response, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0 // deterministic doubling
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	b.Reset()

	attempt := func() (*http.Response, error) {
		resp, err := op()
		if err != nil {
			return nil, err // network error, retryable
		}

		if isRetryableStatus(resp.StatusCode) {
			// Drain so the transport can reuse the connection.
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil, &retryableStatusError{status: resp.StatusCode}
		}

		return resp, nil
	}

	notify := p.Notify
	if notify == nil {
		notify = func(error, time.Duration) {}
	}

	return backoff.RetryNotifyWithData(
		attempt,
		backoff.WithMaxRetries(b, uint64(maxAttempts-1)),
		notify,
	)
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
