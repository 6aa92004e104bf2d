package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned when the location does not exist.
	ErrNotFound = errors.New("input not found")
	// ErrTooLarge is returned when the object exceeds the read limit.
	ErrTooLarge = errors.New("input exceeds size limit")
)

// Object is a fetched analysis input.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Source loads analysis inputs from one kind of location.
type Source interface {
	Fetch(ctx context.Context, location string) (Object, error)
}

// readLimited reads at most limit bytes and fails with ErrTooLarge beyond that.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
