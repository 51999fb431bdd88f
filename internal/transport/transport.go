// Package transport provides the external collaborators the emulator core
// downloads through: one narrow interface for manifests, one for segments.
// The core never sees HTTP specifics; retries are the scheduler's concern
// and connection pooling/timeouts are the client's.
package transport

import (
	"context"
	"fmt"
	"time"
)

// TransportError reports a failed fetch. Per-segment failures are retried
// by the scheduler; manifest failures abort the session before scheduling
// starts.
type TransportError struct {
	Op         string // "manifest" or "segment"
	URL        string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: %s %s: status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ManifestFetcher retrieves raw manifest bytes.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, uri string) ([]byte, error)
}

// SegmentFetcher retrieves one segment, discarding the payload and
// reporting the transferred byte count and elapsed wall time. Elapsed
// time must have at least millisecond resolution for throughput accuracy.
type SegmentFetcher interface {
	// FetchSegment downloads uri, restricted to byteRange ("first-last")
	// when non-empty.
	FetchSegment(ctx context.Context, uri, byteRange string) (bytes int64, elapsed time.Duration, err error)
}
