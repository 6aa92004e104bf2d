package validation

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

// DefaultMaxUploadBytes is the per-file cap for analysis inputs.
const DefaultMaxUploadBytes = 10 * 1024 * 1024

// MediaKind is what an input slot expects.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

var allowedTypes = map[MediaKind][]string{
	MediaImage: {"image/jpeg", "image/png", "image/webp"},
	MediaVideo: {"video/mp4", "video/webm", "video/quicktime"},
}

// UploadValidator checks size and media type of analysis inputs.
type UploadValidator struct {
	maxBytes int64
}

func NewUploadValidator(maxBytes int64) *UploadValidator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadValidator{maxBytes: maxBytes}
}

// MaxBytes returns the configured cap.
func (v *UploadValidator) MaxBytes() int64 { return v.maxBytes }

// Validate returns the effective content type of data, or a validation error.
func (v *UploadValidator) Validate(kind MediaKind, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is empty", displayName(filename)), nil)
	}
	if int64(len(data)) > v.maxBytes {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("%s exceeds the %d MB limit", displayName(filename), v.maxBytes/(1024*1024)), nil).
			WithDetails(fmt.Sprintf("size %d bytes", len(data)))
	}

	ct := DetectContentType(filename, contentType, data)
	allowed, ok := allowedTypes[kind]
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown media kind %q", kind), nil)
	}
	if !slices.Contains(allowed, ct) {
		return "", apperrors.NewValidationError(
			fmt.Sprintf("%s must be one of %s", displayName(filename), strings.Join(allowed, ", ")), nil).
			WithDetails("got " + ct)
	}
	return ct, nil
}

// DetectContentType prefers a specific declared type, then the extension, then sniffing.
func DetectContentType(filename, declared string, data []byte) string {
	if ct := baseType(declared); ct != "" && ct != "application/octet-stream" {
		return normalizeType(ct)
	}
	if ext := filepath.Ext(filename); ext != "" {
		if ct := baseType(mime.TypeByExtension(ext)); ct != "" {
			return normalizeType(ct)
		}
	}
	return normalizeType(baseType(http.DetectContentType(data)))
}

func baseType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

func normalizeType(ct string) string {
	switch ct {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "video/mov":
		return "video/quicktime"
	}
	return ct
}

func displayName(filename string) string {
	if filename == "" {
		return "file"
	}
	return filepath.Base(filename)
}
