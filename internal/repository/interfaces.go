package repository

import (
	"context"

	"github.com/anime-shed/kyc-console-go/internal/storage"
)

// InputRepository loads analysis inputs from any supported location
type InputRepository interface {
	// Load fetches the input at a path, file:// URL, http(s) URL or blob URL
	Load(ctx context.Context, location string) (storage.Object, error)
}

// ScopedSource is a source that only serves some URLs, like one blob account
type ScopedSource interface {
	storage.Source
	Handles(location string) bool
}
