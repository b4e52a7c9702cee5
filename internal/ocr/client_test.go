package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JAaron93/phenomenallayout/internal/apperr"
	"github.com/JAaron93/phenomenallayout/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewLoggerAt("test", "error")
}

func TestClient_Process_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[{"blocks":[{"lines":[{"words":[{"text":"hello","bbox":[1,2,3,4]}]}]}]}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token", 5*time.Second, 1, testLogger())
	layout, err := client.Process(context.Background(), "job1", [][]byte{[]byte("fake-png-bytes")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layout.Pages) != 1 || len(layout.Pages[0].Blocks) != 1 {
		t.Fatalf("unexpected layout shape: %+v", layout)
	}
}

func TestClient_Process_MissingTokenFailsFast(t *testing.T) {
	client := NewClient("http://unused", "", time.Second, 1, testLogger())
	_, err := client.Process(context.Background(), "job1", [][]byte{[]byte("x")})
	if err == nil {
		t.Fatalf("expected an error for a missing token")
	}
}

func TestClient_Process_TooManyImagesRejected(t *testing.T) {
	client := NewClient("http://unused", "token", time.Second, 1, testLogger())
	images := make([][]byte, MaxImages+1)
	for i := range images {
		images[i] = []byte("x")
	}
	_, err := client.Process(context.Background(), "job1", images)
	if err == nil {
		t.Fatalf("expected an error for exceeding MaxImages")
	}
}

func TestClient_Process_OversizedImageRejected(t *testing.T) {
	client := NewClient("http://unused", "token", time.Second, 1, testLogger())
	big := make([]byte, MaxImageBytes+1)
	_, err := client.Process(context.Background(), "job1", [][]byte{big})
	if err == nil {
		t.Fatalf("expected an error for an oversized image")
	}
}

func TestClient_Process_AuthFailureIsNonRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "token", 5*time.Second, 3, testLogger())
	_, err := client.Process(context.Background(), "job1", [][]byte{[]byte("x")})
	if err == nil {
		t.Fatalf("expected an error")
	}
	pe, ok := err.(*apperr.PipelineError)
	if !ok {
		t.Fatalf("expected *apperr.PipelineError, got %T", err)
	}
	if pe.Retryable() {
		t.Fatalf("expected an authentication failure to be non-retryable")
	}
}

func TestParseRetryAfter_ParsesSeconds(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
	if got := parseRetryAfter("bogus"); got != 0 {
		t.Fatalf("expected 0 for an unparseable header, got %v", got)
	}
}
