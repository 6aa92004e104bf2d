package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// FileSource reads inputs from the local filesystem, for the CLI.
type FileSource struct {
	maxBytes int64
}

func NewFileSource(maxBytes int64) *FileSource {
	return &FileSource{maxBytes: maxBytes}
}

// Fetch accepts a plain path or a file:// URL.
func (s *FileSource) Fetch(ctx context.Context, location string) (Object, error) {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		p = u.Path
	}

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	data, err := readLimited(f, s.maxBytes)
	if err != nil {
		return Object{}, err
	}
	return Object{Name: filepath.Base(p), Data: data}, nil
}
