package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchManifest(t *testing.T) {
	const doc = `<MPD type="static"/>`

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(doc))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{RequestTimeout: 5 * time.Second, UserAgent: "dash-test/1.0"})

	body, err := c.FetchManifest(context.Background(), srv.URL+"/stream.mpd")
	if err != nil {
		t.Fatalf("FetchManifest error: %v", err)
	}
	if string(body) != doc {
		t.Errorf("body = %q, want %q", body, doc)
	}
	if gotUA != "dash-test/1.0" {
		t.Errorf("User-Agent = %q, want dash-test/1.0", gotUA)
	}
}

func TestFetchManifest_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{})

	_, err := c.FetchManifest(context.Background(), srv.URL+"/missing.mpd")
	if err == nil {
		t.Fatal("FetchManifest = nil error for 404")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error type %T, want *TransportError", err)
	}
	if terr.Op != "manifest" || terr.StatusCode != http.StatusNotFound {
		t.Errorf("TransportError = %+v", terr)
	}
}

func TestFetchSegment(t *testing.T) {
	payload := make([]byte, 4096)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{})

	n, elapsed, err := c.FetchSegment(context.Background(), srv.URL+"/seg-1.m4s", "")
	if err != nil {
		t.Fatalf("FetchSegment error: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("bytes = %d, want %d", n, len(payload))
	}
	if elapsed <= 0 {
		t.Errorf("elapsed = %v, want positive", elapsed)
	}
}

func TestFetchSegment_ByteRange(t *testing.T) {
	var gotRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 500))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{})

	n, _, err := c.FetchSegment(context.Background(), srv.URL+"/seg-1.m4s", "500-999")
	if err != nil {
		t.Fatalf("FetchSegment error: %v", err)
	}
	if gotRange != "bytes=500-999" {
		t.Errorf("Range header = %q, want bytes=500-999", gotRange)
	}
	if n != 500 {
		t.Errorf("bytes = %d, want 500", n)
	}
}

func TestFetchSegment_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPConfig{})

	_, _, err := c.FetchSegment(context.Background(), srv.URL+"/seg-1.m4s", "")
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if terr.Op != "segment" || terr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("TransportError = %+v", terr)
	}
}

func TestFetchSegment_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(HTTPConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := c.FetchSegment(ctx, srv.URL+"/seg-1.m4s", "")
	if err == nil {
		t.Fatal("FetchSegment = nil error after context cancellation")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want wrapped context.DeadlineExceeded", err)
	}
}

func TestTransportError_Message(t *testing.T) {
	e := &TransportError{Op: "segment", URL: "http://o/seg.m4s", StatusCode: 503}
	if e.Error() == "" {
		t.Error("empty error message")
	}

	inner := errors.New("connection refused")
	e = &TransportError{Op: "manifest", URL: "http://o/a.mpd", Err: inner}
	if !errors.Is(e, inner) {
		t.Error("TransportError does not unwrap to the inner error")
	}
}
