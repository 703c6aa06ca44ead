package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/StrathCole/external-adapter-go/pkg/logging"
	"github.com/StrathCole/external-adapter-go/pkg/version"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxErrorBody       = 512
)

// HTTPOptions configures an upstream HTTP client.
type HTTPOptions struct {
	Timeout time.Duration
	// RateLimit is the sustained request rate per second; zero disables limiting.
	RateLimit float64
	Burst     int
	Headers   map[string]string
}

// HTTPOptionsFromConfig reads timeout, rate_limit, burst and headers from an adapter
// config map. Headers is never nil so adapters can add their own.
func HTTPOptionsFromConfig(config map[string]interface{}) (HTTPOptions, error) {
	timeout, err := GetDuration(config, "timeout", defaultHTTPTimeout)
	if err != nil {
		return HTTPOptions{}, err
	}
	headers, err := GetStringMap(config, "headers")
	if err != nil {
		return HTTPOptions{}, err
	}
	if headers == nil {
		headers = map[string]string{}
	}
	return HTTPOptions{
		Timeout:   timeout,
		RateLimit: GetFloat(config, "rate_limit", 0),
		Burst:     GetInt(config, "burst", 1),
		Headers:   headers,
	}, nil
}

// HTTPClient is an upstream client that waits on a shared limiter before each request
// and stamps every request with the configured headers.
type HTTPClient struct {
	source string
	client *http.Client
	logger *logging.Logger
}

// NewHTTPClient builds a client for the named upstream.
func NewHTTPClient(source string, opts HTTPOptions, logger *logging.Logger) *HTTPClient {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &HTTPClient{
		source: source,
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &limitedTransport{
				base:    http.DefaultTransport,
				limiter: limiter,
				headers: opts.Headers,
			},
		},
		logger: logger,
	}
}

// Client returns the underlying *http.Client, for transports such as JSON-RPC that
// should share the limiter and headers.
func (c *HTTPClient) Client() *http.Client { return c.client }

// GetJSON issues a GET and decodes the JSON body with numbers kept as json.Number.
// Non-2xx responses become *UpstreamError carrying the status.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, query url.Values) (interface{}, error) {
	var doc interface{}
	if err := c.DecodeJSON(ctx, rawURL, query, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecodeJSON issues a GET and decodes the JSON body into out.
func (c *HTTPClient) DecodeJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) error {
	return c.decode(ctx, http.MethodGet, rawURL, query, out)
}

// PostJSON issues a bodiless POST, the shape RPC-over-HTTP APIs such as IPFS
// expect, and decodes the JSON body into out.
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, query url.Values, out interface{}) error {
	return c.decode(ctx, http.MethodPost, rawURL, query, out)
}

// PostBytes issues a bodiless POST and returns at most limit bytes of the body.
// A longer body fails with ErrInvalidResponse.
func (c *HTTPClient) PostBytes(ctx context.Context, rawURL string, query url.Values, limit int64) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodPost, rawURL, query, "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &UpstreamError{Source: c.source, Status: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrInvalidResponse, err)}
	}
	if int64(len(body)) > limit {
		return nil, &UpstreamError{Source: c.source, Status: resp.StatusCode, Err: fmt.Errorf("%w: body exceeds %d bytes", ErrInvalidResponse, limit)}
	}
	return body, nil
}

func (c *HTTPClient) decode(ctx context.Context, method, rawURL string, query url.Values, out interface{}) error {
	resp, err := c.send(ctx, method, rawURL, query, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &UpstreamError{Source: c.source, Status: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrInvalidResponse, err)}
	}
	return nil
}

// send performs the request and turns non-2xx responses into *UpstreamError.
// The caller closes the body of a successful response.
func (c *HTTPClient) send(ctx context.Context, method, rawURL string, query url.Values, accept string) (*http.Response, error) {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)

	c.logger.Debug("Upstream request", "source", c.source, "method", method, "url", rawURL)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Source: c.source, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &UpstreamError{
			Source: c.source,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%w: %s", ErrUnexpectedStatus, string(body)),
		}
	}
	return resp, nil
}

type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
	headers map[string]string
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
		}
	}

	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.AgentString())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
