// Package quota mirrors the backend's usage limits so the playground can refuse
// an analysis before uploading anything. The backend stays authoritative.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/capability"
	"github.com/anime-shed/kyc-console-go/internal/logger"

	"github.com/sirupsen/logrus"
)

// ErrExhausted is returned by Tracker.Check when remaining <= 0.
var ErrExhausted = errors.New("quota exhausted")

// Entry is the allowance of one service key.
type Entry struct {
	Limit     int64      `json:"limit"`
	Used      int64      `json:"used"`
	Remaining int64      `json:"remaining"`
	ResetAt   *time.Time `json:"reset_at"`
}

// Snapshot maps a service key (feature id or category) to its allowance.
type Snapshot map[string]Entry

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		if v.ResetAt != nil {
			t := *v.ResetAt
			v.ResetAt = &t
		}
		out[k] = v
	}
	return out
}

// Resolve looks up the feature key first, then its category key.
// nil means no known constraint.
func Resolve(s Snapshot, f capability.Feature) *Entry {
	if e, ok := s[f.ID]; ok {
		return &e
	}
	if e, ok := s[string(f.Category)]; ok {
		return &e
	}
	return nil
}

// IsExhausted is true iff an entry is known and remaining <= 0.
func IsExhausted(e *Entry) bool {
	return e != nil && e.Remaining <= 0
}

// Source fetches a fresh snapshot.
type Source interface {
	FetchQuota(ctx context.Context) (Snapshot, error)
}

// Tracker holds the latest snapshot. Every Refresh replaces it wholesale.
type Tracker struct {
	mu        sync.RWMutex
	source    Source
	snapshot  Snapshot
	fetchedAt time.Time
}

func NewTracker(source Source) *Tracker {
	return &Tracker{source: source}
}

// Refresh re-fetches the whole snapshot. On failure the previous snapshot is kept.
func (t *Tracker) Refresh(ctx context.Context) error {
	snap, err := t.source.FetchQuota(ctx)
	if err != nil {
		logger.WithError(err).Warn("quota refresh failed, keeping previous snapshot")
		return fmt.Errorf("refresh quota: %w", err)
	}
	t.mu.Lock()
	t.snapshot = snap.Clone()
	t.fetchedAt = time.Now()
	t.mu.Unlock()

	logger.WithFields(logrus.Fields{"keys": len(snap)}).Debug("quota snapshot refreshed")
	return nil
}

// Snapshot returns a copy of the latest snapshot, nil before the first fetch.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot.Clone()
}

// FetchedAt is the time of the last successful refresh.
func (t *Tracker) FetchedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fetchedAt
}

// Lookup resolves the entry for f against the latest snapshot.
func (t *Tracker) Lookup(f capability.Feature) *Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Resolve(t.snapshot, f)
}

// Check returns ErrExhausted when the known allowance for f is used up.
func (t *Tracker) Check(f capability.Feature) (*Entry, error) {
	e := t.Lookup(f)
	if IsExhausted(e) {
		return e, fmt.Errorf("%w for %s", ErrExhausted, f.ID)
	}
	return e, nil
}
