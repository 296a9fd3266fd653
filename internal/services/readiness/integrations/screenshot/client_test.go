package screenshot

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func fixedNow() time.Time {
	return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
}

func TestCaptureSuccess(t *testing.T) {
	client := NewClient(Config{
		BaseURL: "https://shots.example.com/capture?viewport=mobile",
		Clock:   fixedNow,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("url") != "https://notes.app" || q.Get("viewport") != "mobile" {
				t.Fatalf("query = %q", req.URL.RawQuery)
			}
			return response(http.StatusOK, `{"imageUrl":"https://shots/1.png"}`), nil
		})},
	})

	shot, err := client.Capture(context.Background(), "https://notes.app")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if shot.ImageURL != "https://shots/1.png" || !shot.CapturedAt.Equal(fixedNow()) {
		t.Fatalf("shot = %+v", shot)
	}
}

func TestCaptureServiceReportedError(t *testing.T) {
	client := NewClient(Config{
		BaseURL: "https://shots.example.com/capture",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return response(http.StatusOK, `{"error":"navigation timeout"}`), nil
		})},
	})

	shot, err := client.Capture(context.Background(), "https://notes.app")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if shot.ImageURL != "" || shot.Error != "navigation timeout" {
		t.Fatalf("shot = %+v, want reported error", shot)
	}
}

func TestCaptureStatusError(t *testing.T) {
	client := NewClient(Config{
		BaseURL: "https://shots.example.com/capture",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return response(http.StatusServiceUnavailable, "busy"), nil
		})},
	})

	if _, err := client.Capture(context.Background(), "https://notes.app"); err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Fatalf("err = %v, want status error", err)
	}
	if _, err := client.Capture(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty page url")
	}
}
