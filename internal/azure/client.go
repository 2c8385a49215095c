package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Static errors for Azure client operations.
var (
	// ErrResourceKeyRequired is returned when no subscription key is given.
	ErrResourceKeyRequired = errors.New("azure: resource key is required")
	// ErrRegionRequired is returned when neither a region nor a base URL is given.
	ErrRegionRequired = errors.New("azure: region is required")
	// ErrEmptyAudio is returned when the provider answers 2xx with no body.
	ErrEmptyAudio = errors.New("azure: provider returned no audio")
)

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 512

// Client defines the interface for synthesizing speech.
type Client interface {
	// Synthesize converts one request to audio in the configured output format.
	Synthesize(ctx context.Context, creds Credentials, req Request) ([]byte, error)
}

// HTTPClient is the REST implementation of Client.
type HTTPClient struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	baseBackoff  time.Duration
	userAgent    string
	outputFormat string
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the region-derived endpoint host.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithRateLimit caps outgoing requests per second. A non-positive rps
// disables limiting.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(hc *HTTPClient) {
		if rps <= 0 {
			hc.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		hc.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxRetries sets how often throttled or 5xx responses are retried.
// The default is zero.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(hc *HTTPClient) {
		hc.userAgent = ua
	}
}

// WithOutputFormat sets the X-Microsoft-OutputFormat header.
func WithOutputFormat(format string) ClientOption {
	return func(hc *HTTPClient) {
		hc.outputFormat = format
	}
}

// NewClient creates a new Azure Speech HTTP client.
func NewClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseBackoff:  time.Second,
		userAgent:    DefaultUserAgent,
		outputFormat: DefaultOutputFormat,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synthesize sends req as SSML and returns the audio body.
func (c *HTTPClient) Synthesize(ctx context.Context, creds Credentials, req Request) ([]byte, error) {
	if creds.ResourceKey == "" {
		return nil, ErrResourceKeyRequired
	}
	endpoint, err := c.endpoint(creds.Region)
	if err != nil {
		return nil, err
	}

	body := BuildSSML(req)

	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("azure: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		audio, err := c.doRequest(ctx, endpoint, creds.ResourceKey, body)
		if err == nil {
			return audio, nil
		}
		if !isRetryable(err) {
			return nil, err
		}
		lastErr = err
	}

	if c.maxRetries == 0 {
		return nil, unwrapRetryable(lastErr)
	}
	return nil, fmt.Errorf("azure: max retries exceeded: %w", unwrapRetryable(lastErr))
}

func (c *HTTPClient) endpoint(region string) (string, error) {
	if c.baseURL != "" {
		return c.baseURL + synthesisPath, nil
	}
	if region == "" {
		return "", ErrRegionRequired
	}
	return fmt.Sprintf("https://%s.tts.speech.microsoft.com%s", region, synthesisPath), nil
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, url, key, ssml string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("azure: rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: create request: %w", err)
	}

	req.Header.Set("Ocp-Apim-Subscription-Key", key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.outputFormat)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &SynthesisError{Err: err}
		}
		return nil, &retryableError{err: &SynthesisError{Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retryableError{err: &SynthesisError{StatusCode: resp.StatusCode, Err: err}}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		synthErr := &SynthesisError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp, respBody),
		}
		// 5xx and 429 (throttled) are retryable
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, &retryableError{err: synthErr}
		}
		return nil, synthErr
	}

	if len(respBody) == 0 {
		return nil, &SynthesisError{StatusCode: resp.StatusCode, Err: ErrEmptyAudio}
	}

	return respBody, nil
}

func errorMessage(resp *http.Response, body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = resp.Header.Get("X-Microsoft-Reason")
	}
	return msg
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

func unwrapRetryable(err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return re.err
	}
	return err
}
