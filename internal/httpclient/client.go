package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shahid-2020/candlesheet/internal/ratelimit"
	"github.com/shahid-2020/candlesheet/internal/retry"
)

var ErrBodyNotReplayable = errors.New("httpclient: request body cannot be replayed")

// StatusError is the retry cause recorded when a response carries one of
// the configured retryable statuses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: retryable status %d", e.StatusCode)
}

type Client struct {
	httpClient    *http.Client
	limiter       *ratelimit.RateLimiter
	policy        retry.Policy
	retryOnStatus []int
	log           logrus.FieldLogger
}

type RetryConfig struct {
	MaxRetries    uint
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	RetryOnStatus []int
}

type ClientConfig struct {
	HttpClient  *http.Client
	RateLimits  []ratelimit.Limit
	RetryConfig RetryConfig
	Logger      logrus.FieldLogger
}

func NewClient(config ClientConfig) *Client {
	if config.HttpClient == nil {
		config.HttpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	return &Client{
		httpClient: config.HttpClient,
		limiter:    ratelimit.NewRateLimiter(config.RateLimits...),
		policy: retry.Policy{
			MaxRetries: config.RetryConfig.MaxRetries,
			BaseDelay:  config.RetryConfig.BaseDelay,
			MaxDelay:   config.RetryConfig.MaxDelay,
		},
		retryOnStatus: config.RetryConfig.RetryOnStatus,
		log:           config.Logger,
	}
}

// Do sends req through the rate limiter, retrying transport errors and the
// configured statuses. When the final attempt still gets a retryable status
// that response is returned unread so the caller can inspect it.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var resp *http.Response

	retryer := retry.NewRetryer(c.policy).OnRetry(func(attempt uint, delay time.Duration, err error) {
		c.log.WithFields(logrus.Fields{
			"method":  req.Method,
			"path":    req.URL.Path,
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).WithError(err).Warn("request failed, retrying")
	})
	last := retryer.MaxAttempts() - 1

	err := retryer.Do(ctx, func(attempt uint) (bool, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}

		attemptReq, err := cloneRequest(ctx, req, attempt)
		if err != nil {
			return false, err
		}

		r, err := c.httpClient.Do(attemptReq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			return true, err
		}

		if attempt < last && slices.Contains(c.retryOnStatus, r.StatusCode) {
			drain(r.Body)
			return true, &StatusError{StatusCode: r.StatusCode}
		}

		resp = r
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func cloneRequest(ctx context.Context, req *http.Request, attempt uint) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("httpclient: rewind body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
