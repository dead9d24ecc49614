package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-myimpact/pkg/transport"
)

func TestClientSend_ReturnsBodyAndSetsHeaders(t *testing.T) {
	t.Parallel()

	var (
		gotMethod  string
		gotBody    map[string]any
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(server.Close)

	client := transport.New(
		transport.WithBaseURL(server.URL+"/"),
		transport.WithHeader("X-Client", "myimpact"),
		transport.WithRequestIDGenerator(func() string { return "req-1" }),
	)

	raw, err := client.Send(context.Background(), transport.Request{
		Method: http.MethodPost,
		Path:   "/api/goals/generate",
		Body:   map[string]string{"scale": "engineering"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Fatalf("body = %s", raw)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s, want POST", gotMethod)
	}
	if diff := cmp.Diff(map[string]any{"scale": "engineering"}, gotBody); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
	if got := gotHeaders.Get(transport.HeaderRequestID); got != "req-1" {
		t.Fatalf("request id = %q, want req-1", got)
	}
	if got := gotHeaders.Get("X-Client"); got != "myimpact" {
		t.Fatalf("X-Client = %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestClientSend_HTTPStatusKeepsJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"rate limited"}`))
	}))
	t.Cleanup(server.Close)

	_, err := transport.New(transport.WithBaseURL(server.URL)).Send(context.Background(), transport.Request{Path: "/api/metadata"})

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %v", err)
	}
	if terr.Kind != transport.KindHTTPStatus || terr.Status != http.StatusInternalServerError {
		t.Fatalf("unexpected error: %+v", terr)
	}
	if string(terr.Body) != `{"detail":"rate limited"}` {
		t.Fatalf("body = %s", terr.Body)
	}
	if transport.Retryable(err) {
		t.Fatalf("http status errors must not be retryable")
	}
}

func TestClientSend_HTTPStatusDropsNonJSONBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	t.Cleanup(server.Close)

	_, err := transport.New(transport.WithBaseURL(server.URL)).Send(context.Background(), transport.Request{Path: "/api/metadata"})

	var terr *transport.Error
	if !errors.As(err, &terr) {
		t.Fatalf("expected *transport.Error, got %v", err)
	}
	if terr.Body != nil {
		t.Fatalf("expected nil body for non-JSON payload, got %s", terr.Body)
	}
}

func TestClientSend_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	_, err := transport.New(transport.WithBaseURL(server.URL)).Send(context.Background(), transport.Request{
		Path:    "/api/metadata",
		Timeout: 20 * time.Millisecond,
	})
	if !transport.IsKind(err, transport.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !transport.Retryable(err) {
		t.Fatalf("timeouts should be retryable")
	}
}

func TestClientSend_TimeoutStopsOnceHeadersArrive(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(80 * time.Millisecond)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	t.Cleanup(server.Close)

	body, err := transport.New(transport.WithBaseURL(server.URL)).Send(context.Background(), transport.Request{
		Path:    "/api/health",
		Timeout: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("slow body after prompt headers should succeed, got %v", err)
	}
	if string(body) != `{"status":"healthy"}` {
		t.Fatalf("body = %s", body)
	}
}

func TestClientSend_CallerCancellation(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := transport.New(transport.WithBaseURL(server.URL)).Send(ctx, transport.Request{Path: "/api/metadata"})
	if !transport.IsKind(err, transport.KindCancelled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestClientSend_NetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := transport.New(transport.WithBaseURL(url)).Send(context.Background(), transport.Request{Path: "/api/health"})
	if !transport.IsKind(err, transport.KindNetwork) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestClientSend_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := transport.New().Send(context.Background(), transport.Request{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
