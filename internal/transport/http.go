package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient implements both fetcher interfaces over net/http. One
// instance is shared by a session; the underlying http.Client handles
// connection pooling and enforces the request timeout.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// HTTPConfig holds client options.
type HTTPConfig struct {
	// RequestTimeout bounds each fetch end to end. Zero means no timeout.
	RequestTimeout time.Duration
	UserAgent      string
}

// NewHTTPClient creates a client with the given options.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	return &HTTPClient{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		userAgent: cfg.UserAgent,
	}
}

// FetchManifest downloads the full manifest document.
func (c *HTTPClient) FetchManifest(ctx context.Context, uri string) ([]byte, error) {
	resp, err := c.get(ctx, uri, "")
	if err != nil {
		return nil, &TransportError{Op: "manifest", URL: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "manifest", URL: uri, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "manifest", URL: uri, Err: err}
	}
	return body, nil
}

// FetchSegment downloads a segment, discarding the payload. The byte count
// and elapsed time cover the whole transfer including the response body.
func (c *HTTPClient) FetchSegment(ctx context.Context, uri, byteRange string) (int64, time.Duration, error) {
	start := time.Now()

	resp, err := c.get(ctx, uri, byteRange)
	if err != nil {
		return 0, time.Since(start), &TransportError{Op: "segment", URL: uri, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, time.Since(start), &TransportError{Op: "segment", URL: uri, StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return n, elapsed, &TransportError{Op: "segment", URL: uri, Err: err}
	}
	return n, elapsed, nil
}

func (c *HTTPClient) get(ctx context.Context, uri, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if byteRange != "" {
		req.Header.Set("Range", fmt.Sprintf("bytes=%s", byteRange))
	}
	return c.client.Do(req)
}

var (
	_ ManifestFetcher = (*HTTPClient)(nil)
	_ SegmentFetcher  = (*HTTPClient)(nil)
)
