package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var pngData = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, // PNG signature
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52, // IHDR chunk
}

func TestHTTPSource_RetryLogic(t *testing.T) {
	tests := []struct {
		name          string
		responses     []int
		expectCalls   int
		expectError   bool
		errorContains string
	}{
		{"Success on first attempt", []int{200}, 1, false, ""},
		{"Success on second attempt after 5xx", []int{500, 200}, 2, false, ""},
		{"4xx client error - no retry", []int{403}, 1, true, "client error: status code 403"},
		{"404 is not found", []int{404}, 1, true, "input not found"},
		{"4xx after 5xx stops", []int{500, 400}, 2, true, "client error: status code 400"},
		{"All 5xx errors - retry all attempts", []int{500, 502, 503}, 3, true, "server error: status code 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.responses[n-1]
				if status == http.StatusOK {
					w.Header().Set("Content-Type", "image/png")
					w.Write(pngData)
					return
				}
				w.WriteHeader(status)
				fmt.Fprintf(w, "Error %d", status)
			}))
			defer server.Close()

			src := NewHTTPSource(1024).WithBackoff(time.Millisecond)
			obj, err := src.Fetch(context.Background(), server.URL+"/inputs/card.png")

			if got := int(atomic.LoadInt32(&calls)); got != tt.expectCalls {
				t.Errorf("Expected %d requests, got %d", tt.expectCalls, got)
			}
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain %q, got: %s", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got: %s", err)
			}
			if obj.Name != "card.png" || obj.ContentType != "image/png" || len(obj.Data) != len(pngData) {
				t.Errorf("unexpected object: %+v", obj)
			}
		})
	}
}

func TestHTTPSource_NetworkErrorRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			if hj, ok := w.(http.Hijacker); ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
			}
			return
		}
		w.Write(pngData)
	}))
	defer server.Close()

	backoff := 10 * time.Millisecond
	start := time.Now()
	_, err := NewHTTPSource(1024).WithBackoff(backoff).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got error: %s", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("Expected 3 requests, got %d", n)
	}
	if elapsed := time.Since(start); elapsed < 3*backoff {
		t.Errorf("Expected at least %v of backoff, took %v", 3*backoff, elapsed)
	}
}

func TestHTTPSource_SizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	_, err := NewHTTPSource(1024).Fetch(context.Background(), server.URL)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "selfie.png")
	if err := os.WriteFile(p, pngData, 0o600); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(1024)

	for _, loc := range []string{p, "file://" + p} {
		obj, err := src.Fetch(context.Background(), loc)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", loc, err)
		}
		if obj.Name != "selfie.png" || len(obj.Data) != len(pngData) {
			t.Errorf("unexpected object %+v", obj)
		}
	}

	if _, err := src.Fetch(context.Background(), filepath.Join(dir, "missing.png")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := NewFileSource(4).Fetch(context.Background(), p); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestParseBlobURL(t *testing.T) {
	tests := []struct {
		url           string
		container     string
		blob          string
		expectFailure bool
	}{
		{"https://acct.blob.core.windows.net/inputs/2024/card.jpg", "inputs", "2024/card.jpg", false},
		{"https://acct.blob.core.windows.net/inputs?blob=card.jpg", "inputs", "card.jpg", false},
		{"https://acct.blob.core.windows.net/inputs", "", "", true},
		{"https://acct.blob.core.windows.net/", "", "", true},
	}
	for _, tt := range tests {
		c, b, err := parseBlobURL(tt.url)
		if tt.expectFailure {
			if err == nil {
				t.Errorf("parseBlobURL(%s) expected error", tt.url)
			}
			continue
		}
		if err != nil || c != tt.container || b != tt.blob {
			t.Errorf("parseBlobURL(%s) = (%q, %q, %v), want (%q, %q)", tt.url, c, b, err, tt.container, tt.blob)
		}
	}
}

func TestAzureSource_Handles(t *testing.T) {
	src, err := NewAzureSource("acct", "a2V5", 1024)
	if err != nil {
		t.Fatalf("NewAzureSource: %v", err)
	}
	if !src.Handles("https://acct.blob.core.windows.net/c/a.jpg") {
		t.Error("expected own account URL to be handled")
	}
	if src.Handles("https://other.blob.core.windows.net/c/a.jpg") || src.Handles("https://example.com/a.jpg") {
		t.Error("expected foreign URLs to be rejected")
	}
}
