package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
)

// SourceURLValidator checks remote input locations before anything is downloaded.
type SourceURLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewSourceURLValidator accepts any http or https host.
func NewSourceURLValidator() *SourceURLValidator {
	return &SourceURLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewSourceURLValidatorWithOptions restricts schemes and hosts.
func NewSourceURLValidatorWithOptions(schemes []string, hosts []string) *SourceURLValidator {
	return &SourceURLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateSourceURL rejects empty, malformed, credential-bearing or disallowed URLs.
func (v *SourceURLValidator) ValidateSourceURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}
	if parsed.Hostname() == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	if parsed.User != nil {
		return apperrors.NewValidationError("URL must not embed credentials", nil)
	}
	if !v.isHostAllowed(parsed.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}
	return nil
}

func (v *SourceURLValidator) isSchemeAllowed(scheme string) bool {
	return slices.Contains(v.allowedSchemes, strings.ToLower(scheme))
}

// isHostAllowed also accepts subdomains of an allowed host.
func (v *SourceURLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
