package transcription

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

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}

func newTestClient(t *testing.T, endpoint string, maxRetries int) *Client {
	t.Helper()

	client, err := NewClient(Config{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Model:         "whisper-1",
		Timeout:       5 * time.Second,
		MaxRetries:    maxRetries,
		MaxConcurrent: 2,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	client.sleep = noSleep
	return client
}

func wavRequest() *Request {
	return &Request{
		Audio:     []byte("RIFFfakewavdata"),
		Language:  "en",
		Prompt:    "context prompt",
		RequestID: "req-1",
	}
}

func TestTranscribeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
		}

		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language en, got %q", got)
		}

		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("Expected default model whisper-1, got %q", got)
		}

		if got := r.FormValue("prompt"); got != "context prompt" {
			t.Errorf("Expected prompt field, got %q", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected audio file: %v", err)
		} else {
			file.Close()
		}

		json.NewEncoder(w).Encode(Response{Text: "hello world", Language: "en"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 3)

	resp, err := client.Transcribe(context.Background(), wavRequest())
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if resp.Text != "hello world" {
		t.Errorf("Expected text %q, got %q", "hello world", resp.Text)
	}

	stats := client.GetStats()
	if stats.SuccessRequests != 1 {
		t.Errorf("Expected 1 successful request, got %d", stats.SuccessRequests)
	}
}

func TestTranscribeRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(Response{Text: "eventually"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	resp, err := client.Transcribe(context.Background(), wavRequest())
	if err != nil {
		t.Fatalf("Transcribe failed after retries: %v", err)
	}

	if resp.Text != "eventually" {
		t.Errorf("Expected text %q, got %q", "eventually", resp.Text)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}

	if stats := client.GetStats(); stats.TotalRetries != 2 {
		t.Errorf("Expected 2 retries, got %d", stats.TotalRetries)
	}
}

func TestTranscribeRateLimitExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 2)

	_, err := client.Transcribe(context.Background(), wavRequest())
	if err == nil {
		t.Fatal("Expected error after exhausted retries")
	}

	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Expected rate-limit classification, got %v", err)
	}

	if got := calls.Load(); got != 3 {
		t.Errorf("Expected 3 attempts (1 + 2 retries), got %d", got)
	}
}

func TestTranscribeDoesNotRetryServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	_, err := client.Transcribe(context.Background(), wavRequest())
	if err == nil {
		t.Fatal("Expected error for server failure")
	}

	if errors.Is(err, ErrRateLimited) {
		t.Errorf("Server error must not classify as rate limit: %v", err)
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("Expected a single attempt for non-retryable error, got %d", got)
	}
}

func TestTranscribeContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	ctx, cancel := context.WithCancel(context.Background())
	client.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := client.Transcribe(ctx, wavRequest()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context cancellation, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	client := newTestClient(t, "http://localhost:9", 0)

	if _, err := client.Transcribe(context.Background(), &Request{RequestID: "r"}); err == nil {
		t.Error("Expected error for empty audio")
	}
}
