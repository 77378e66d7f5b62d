package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBackoff = 30 * time.Second

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent   string
	Timeout     time.Duration // per request; 0 means 5m
	MaxRetries  int           // attempts per file; 0 means 3
	RateLimit   rate.Limit    // requests per second; 0 means 5
	BackoffBase time.Duration // first retry delay; 0 means 1s
}

// HTTPFetcher downloads files from HTTP(S) mirrors of the series files.
// Network errors, 429 and 5xx responses are retried with exponential
// backoff, honouring Retry-After when the server sends one.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher, filling unset options with defaults.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "natal/1.0"
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = time.Second
	}
	return &HTTPFetcher{
		client:  &http.Client{Timeout: opts.Timeout},
		opts:    opts,
		limiter: rate.NewLimiter(opts.RateLimit, 1),
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// get issues the request until it gets a non-retryable response or runs out
// of attempts.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := sleep(ctx, f.delay(attempt, lastErr)); err != nil {
				return nil, eris.Wrap(err, "wait to retry")
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "request")
			}
			lastErr = err
		} else if retryable(resp.StatusCode) {
			_ = resp.Body.Close()
			lastErr = &statusError{status: resp.StatusCode, retryAfter: retryAfter(resp.Header)}
		} else {
			return resp, nil
		}

		zap.L().Warn("fetcher: request failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

type statusError struct {
	status     int
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return "http " + strconv.Itoa(e.status)
}

// delay is the wait before the given retry: the server's Retry-After when
// present, otherwise BackoffBase doubled per attempt. Both are capped.
func (f *HTTPFetcher) delay(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, maxBackoff)
	}
	return min(f.opts.BackoffBase<<(attempt-1), maxBackoff)
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL and writes it to path. A body shorter than
// the advertised Content-Length is an error and leaves no file.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return 0, eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return writeFile(path, sized(resp.Body, resp.ContentLength))
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

