package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: 5 * time.Millisecond}
}

func TestAnalyzeSuccess(t *testing.T) {
	var gotReq analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(Result{
			Success: true,
			Data:    json.RawMessage(`{"points":[[1,2]]}`),
			Message: "clustering complete",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, fastPolicy(3))
	res, err := c.Analyze(context.Background(), "cluster my cells", "/tmp/a.h5ad", "sess-1")
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if !res.Success || res.Message != "clustering complete" {
		t.Errorf("Analyze() = %+v, want success with message", res)
	}
	if gotReq.Query != "cluster my cells" || gotReq.FilePath != "/tmp/a.h5ad" || gotReq.SessionID != "sess-1" {
		t.Errorf("request wire shape = %+v", gotReq)
	}
}

func TestAnalyzeRetriesTransportFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, fastPolicy(3))
	_, err := c.Analyze(context.Background(), "q", "/tmp/f", "s")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Analyze() error = %v, want ServiceError", err)
	}
	if svcErr.Attempts != 3 {
		t.Errorf("ServiceError.Attempts = %d, want 3", svcErr.Attempts)
	}
	if hits.Load() != 3 {
		t.Errorf("server saw %d requests, want exactly 3", hits.Load())
	}
}

func TestAnalyzeDoesNotRetryDefinitiveFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Well-formed failure body: the service answered.
		json.NewEncoder(w).Encode(Result{Success: false, Message: "file is not a valid matrix"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, fastPolicy(3))
	res, err := c.Analyze(context.Background(), "q", "/tmp/f", "s")
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	if res.Success {
		t.Error("expected a failure result")
	}
	if hits.Load() != 1 {
		t.Errorf("server saw %d requests; a definitive failure must not be retried", hits.Load())
	}
}

func TestAnalyzeStopsOnCancellation(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, 5*time.Second, RetryPolicy{MaxAttempts: 10, Delay: 50 * time.Millisecond})

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Analyze(ctx, "q", "/tmp/f", "s")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Analyze() error = %v, want context.Canceled", err)
	}
	if hits.Load() >= 10 {
		t.Errorf("cancellation did not stop the retry loop, saw %d requests", hits.Load())
	}
}

func TestAnalyzeGarbageBodyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, fastPolicy(2))
	_, err := c.Analyze(context.Background(), "q", "/tmp/f", "s")

	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("Analyze() error = %v, want ServiceError after exhausting retries", err)
	}
}
