// Package clients holds the outbound HTTP plumbing shared by the model and
// embedding providers.
package clients

import (
	"context"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// StatusOverloaded is returned by the Anthropic API when the model is
// temporarily over capacity.
const StatusOverloaded = 529

// Retryable reports whether a model call should be attempted again:
// transport errors, timeouts, rate limits, overload and 5xx gateway errors.
func Retryable(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		StatusOverloaded:
		return true
	}
	return false
}

// RetryConfig tunes the backoff applied to outbound calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// ShouldRetry defaults to Retryable.
	ShouldRetry func(resp *http.Response, err error) bool
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.ShouldRetry == nil {
		c.ShouldRetry = Retryable
	}
	return c
}

// NewRetryPolicy builds a jittered exponential-backoff policy. When retries
// run out the executor returns the last response with a
// retrypolicy.ExceededError.
//
//nolint:bodyclose // [*http.Response] is a type parameter here
func NewRetryPolicy(cfg RetryConfig) retrypolicy.RetryPolicy[*http.Response] {
	cfg = cfg.withDefaults()
	return retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(cfg.ShouldRetry).
		Build()
}

// Retrier replays a request through a retry policy. It is safe for
// concurrent use.
type Retrier struct {
	executor failsafe.Executor[*http.Response]
}

//nolint:bodyclose // [*http.Response] is a type parameter here
func NewRetrier(cfg RetryConfig) *Retrier {
	return &Retrier{executor: failsafe.With(NewRetryPolicy(cfg))}
}

// Do sends the request built by newReq on client. newReq runs once per
// attempt so request bodies are never reused, and the body of every
// discarded response is closed before the next attempt.
func (r *Retrier) Do(ctx context.Context, client *http.Client, newReq func() (*http.Request, error)) (*http.Response, error) {
	var previous *http.Response
	resp, err := r.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		if previous != nil {
			_ = previous.Body.Close()
			previous = nil
		}
		req, err := newReq()
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		previous = resp
		return resp, nil
	})
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return resp, nil
}
