package validation

import (
	"errors"
	"testing"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

func messageOf(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	return appErr.Message
}

func TestValidateSourceURL(t *testing.T) {
	v := NewSourceURLValidator()

	tests := []struct {
		url     string
		wantMsg string
	}{
		{"https://example.com/id-card.jpg", ""},
		{"http://192.168.1.1/selfie.png", ""},
		{"https://acct.blob.core.windows.net/inputs/a.jpg", ""},
		{"", "URL cannot be empty"},
		{"  \t", "URL cannot be empty"},
		{"ftp://example.com/a.jpg", "URL scheme not allowed"},
		{"file:///tmp/a.jpg", "URL scheme not allowed"},
		{"not-a-url", "URL scheme not allowed"},
		{"http://", "URL must have a valid host"},
		{"http:///path", "URL must have a valid host"},
		{"https://user:pw@example.com/a.jpg", "URL must not embed credentials"},
	}

	for _, tt := range tests {
		err := v.ValidateSourceURL(tt.url)
		if tt.wantMsg == "" {
			if err != nil {
				t.Errorf("ValidateSourceURL(%q) unexpected error: %v", tt.url, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("ValidateSourceURL(%q) expected error %q", tt.url, tt.wantMsg)
			continue
		}
		if got := messageOf(t, err); got != tt.wantMsg {
			t.Errorf("ValidateSourceURL(%q) = %q, want %q", tt.url, got, tt.wantMsg)
		}
	}
}

func TestValidateSourceURL_RestrictedHosts(t *testing.T) {
	v := NewSourceURLValidatorWithOptions([]string{"https"}, []string{"blob.core.windows.net", "cdn.example.com"})

	for _, ok := range []string{
		"https://acct.blob.core.windows.net/c/a.jpg",
		"https://cdn.example.com/a.jpg",
	} {
		if err := v.ValidateSourceURL(ok); err != nil {
			t.Errorf("expected %s to pass, got %v", ok, err)
		}
	}

	for _, bad := range []string{
		"https://evil.com/a.jpg",
		"https://windows.net.evil.com/a.jpg",
	} {
		err := v.ValidateSourceURL(bad)
		if err == nil || messageOf(t, err) != "URL host not allowed" {
			t.Errorf("expected host rejection for %s, got %v", bad, err)
		}
	}

	if err := v.ValidateSourceURL("http://cdn.example.com/a.jpg"); err == nil {
		t.Error("expected http to be rejected when only https is allowed")
	}
}
