package netutil

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// RetryTransport retries registry requests that failed with a transient
// status or a network error. Waits honour Retry-After and stop early when
// the request context is cancelled.
type RetryTransport struct {
	// Base is the underlying transport. http.DefaultTransport if nil.
	Base http.RoundTripper

	// Logger receives one debug record per retry. slog.Default() if nil.
	Logger *slog.Logger

	// MaxRetries defaults to 3.
	MaxRetries int

	// InitialBackoff defaults to 500ms and doubles on every attempt.
	InitialBackoff time.Duration

	// MaxBackoff defaults to 10s.
	MaxBackoff time.Duration
}

func (t *RetryTransport) settings() (http.RoundTripper, *slog.Logger, int, time.Duration, time.Duration) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := t.MaxRetries
	if retries == 0 {
		retries = 3
	}
	initial := t.InitialBackoff
	if initial == 0 {
		initial = 500 * time.Millisecond
	}
	ceiling := t.MaxBackoff
	if ceiling == 0 {
		ceiling = 10 * time.Second
	}
	return base, logger, retries, initial, ceiling
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base, logger, retries, initial, ceiling := t.settings()
	ctx := req.Context()

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = body
		} else if attempt > 0 && req.Body != nil && req.Body != http.NoBody {
			// The body was consumed by the first attempt.
			return nil, errBodyNotReplayable
		}

		resp, err := base.RoundTrip(attemptReq)
		retryable := err != nil || IsRetryableStatus(resp.StatusCode)
		if !retryable || attempt >= retries {
			return resp, err
		}

		wait := backoff(attempt, initial, ceiling, resp)
		status := 0
		if resp != nil {
			status = resp.StatusCode
			_ = resp.Body.Close()
		}
		logger.Debug("retrying registry request",
			"url", StripCredentials(req.URL.String()),
			"attempt", attempt+1,
			"status", status,
			"wait", wait,
			"error", err)

		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff doubles initial per attempt up to ceiling. A Retry-After header
// in seconds or HTTP-date form takes precedence.
func backoff(attempt int, initial, ceiling time.Duration, resp *http.Response) time.Duration {
	if resp != nil {
		if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
			return min(max(d, 0), ceiling)
		}
	}
	d := initial << attempt
	if d <= 0 || d > ceiling {
		return ceiling
	}
	return d
}

func retryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return time.Until(at), true
	}
	return 0, false
}

// IsRetryableStatus reports whether a registry response status is transient.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
