package liveness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrCameraUnavailable is returned when neither constraint set could be satisfied.
var ErrCameraUnavailable = errors.New("camera unavailable: check permission and hardware")

// Constraints describe the capture a flow asks for.
type Constraints struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FacingMode string `json:"facing_mode,omitempty"`
	Audio      bool   `json:"audio"`
}

// PreferredConstraints ask for an HD front camera; action liveness also records audio.
func PreferredConstraints(v Variant) Constraints {
	return Constraints{Width: 1280, Height: 720, FacingMode: "user", Audio: v == VariantAction}
}

// MinimalConstraints accept any camera without audio.
func MinimalConstraints() Constraints {
	return Constraints{}
}

// Recording is the captured clip.
type Recording struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Stream is an open capture handle. Close releases the hardware and is safe to call twice.
type Stream interface {
	// Record captures while the prompt is shown for d.
	Record(ctx context.Context, prompt string, d time.Duration) error
	// Finish stops recording and returns the clip.
	Finish() (Recording, error)
	Close() error
}

// MediaDevice opens capture streams.
type MediaDevice interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Acquire opens dev with the preferred constraints and retries once with the
// minimal set. The caller owns the returned stream and must Close it.
func Acquire(ctx context.Context, dev MediaDevice, v Variant) (Stream, Constraints, error) {
	preferred := PreferredConstraints(v)
	s, err := dev.Open(ctx, preferred)
	if err == nil {
		return s, preferred, nil
	}
	minimal := MinimalConstraints()
	s, retryErr := dev.Open(ctx, minimal)
	if retryErr == nil {
		return s, minimal, nil
	}
	return nil, Constraints{}, fmt.Errorf("%w: %v", ErrCameraUnavailable, errors.Join(err, retryErr))
}

// FileDevice serves a pre-recorded clip as if it were a camera.
// It cannot honor audio or resolution requests unless Flexible is set.
type FileDevice struct {
	Path     string
	Flexible bool
	// Pace makes Record wait for the prompt duration, as a real capture would.
	Pace bool
}

func (d FileDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if !d.Flexible && (c.Audio || c.Width > 0) {
		return nil, fmt.Errorf("file device cannot satisfy %+v", c)
	}
	info, err := os.Stat(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("capture source %s is a directory", d.Path)
	}
	return &fileStream{path: d.Path, pace: d.Pace}, nil
}

type fileStream struct {
	mu     sync.Mutex
	path   string
	pace   bool
	closed bool
}

func (s *fileStream) Record(ctx context.Context, prompt string, d time.Duration) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.New("stream closed")
	}
	if !s.pace || d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *fileStream) Finish() (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Recording{}, errors.New("stream closed")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Recording{}, fmt.Errorf("read capture: %w", err)
	}
	return Recording{
		Filename:    filepath.Base(s.path),
		ContentType: videoContentType(s.path),
		Data:        data,
	}, nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func videoContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/webm"
	}
}

// ClipDevice serves an already captured recording, such as one uploaded to the
// server. It accepts any constraints since the clip cannot be re-captured.
type ClipDevice struct {
	Clip Recording
}

func (d ClipDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	if len(d.Clip.Data) == 0 {
		return nil, errors.New("no recording supplied")
	}
	return &clipStream{clip: d.Clip}, nil
}

type clipStream struct {
	mu     sync.Mutex
	clip   Recording
	closed bool
}

func (s *clipStream) Record(ctx context.Context, prompt string, d time.Duration) error {
	return ctx.Err()
}

func (s *clipStream) Finish() (Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Recording{}, errors.New("stream closed")
	}
	rec := s.clip
	if rec.Filename == "" {
		rec.Filename = "liveness.webm"
	}
	if rec.ContentType == "" {
		rec.ContentType = videoContentType(rec.Filename)
	}
	return rec, nil
}

func (s *clipStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
