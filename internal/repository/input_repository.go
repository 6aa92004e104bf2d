package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/logger"
	"github.com/anime-shed/kyc-console-go/internal/storage"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
	"github.com/sirupsen/logrus"
)

// SourceRepository routes a location to the source that can read it.
type SourceRepository struct {
	local     storage.Source
	remote    storage.Source
	scoped    []ScopedSource
	validator *validation.SourceURLValidator
}

// Option configures a SourceRepository.
type Option func(*SourceRepository)

// WithLocal enables plain paths and file:// URLs. The BFF leaves this off.
func WithLocal(src storage.Source) Option {
	return func(r *SourceRepository) { r.local = src }
}

// WithScoped registers a source consulted before the generic http one.
func WithScoped(src ScopedSource) Option {
	return func(r *SourceRepository) { r.scoped = append(r.scoped, src) }
}

// NewSourceRepository serves http(s) locations through remote.
func NewSourceRepository(remote storage.Source, validator *validation.SourceURLValidator, opts ...Option) *SourceRepository {
	r := &SourceRepository{remote: remote, validator: validator}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SourceRepository) Load(ctx context.Context, location string) (storage.Object, error) {
	src, err := r.route(location)
	if err != nil {
		return storage.Object{}, err
	}

	obj, err := src.Fetch(ctx, location)
	if err != nil {
		logger.WithFields(logrus.Fields{"location": redact(location)}).WithError(err).Warn("Failed to load input")
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return storage.Object{}, apperrors.NewNotFoundError("Input not found", fmt.Errorf("%w: %v", ErrSourceNotFound, err))
		case errors.Is(err, storage.ErrTooLarge):
			return storage.Object{}, apperrors.NewValidationError("Input exceeds size limit", err)
		default:
			return storage.Object{}, apperrors.NewNetworkError("Input could not be downloaded", fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		}
	}
	return obj, nil
}

func (r *SourceRepository) route(location string) (storage.Source, error) {
	if strings.TrimSpace(location) == "" {
		return nil, apperrors.NewValidationError("Input location cannot be empty", ErrInvalidSource)
	}
	u, err := url.Parse(location)
	scheme := ""
	if err == nil {
		scheme = strings.ToLower(u.Scheme)
	}

	switch {
	case scheme == "http" || scheme == "https":
		if err := r.validator.ValidateSourceURL(location); err != nil {
			return nil, err
		}
		for _, s := range r.scoped {
			if s.Handles(location) {
				return s, nil
			}
		}
		return r.remote, nil
	case scheme == "" || scheme == "file" || len(scheme) == 1: // single letter is a windows drive
		if r.local == nil {
			return nil, apperrors.NewValidationError("Local files are not accepted here", ErrInvalidSource)
		}
		return r.local, nil
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("Unsupported input scheme %q", scheme), ErrInvalidSource)
	}
}

// redact drops query strings, which may carry SAS tokens.
func redact(location string) string {
	if i := strings.IndexByte(location, '?'); i >= 0 {
		return location[:i]
	}
	return location
}
