package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anime-shed/kyc-console-go/internal/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var idCard = capability.Feature{ID: "id_card_ocr", Category: capability.CategoryOCR}

func TestResolve_Order(t *testing.T) {
	snap := Snapshot{
		"id_card_ocr": {Limit: 100, Used: 40, Remaining: 60},
		"ocr":         {Limit: 10, Used: 10, Remaining: 0},
		"face":        {Limit: 5, Used: 1, Remaining: 4},
	}

	e := Resolve(snap, idCard)
	require.NotNil(t, e)
	assert.Equal(t, int64(60), e.Remaining)

	passport := capability.Feature{ID: "passport_ocr", Category: capability.CategoryOCR}
	e = Resolve(snap, passport)
	require.NotNil(t, e)
	assert.Equal(t, int64(0), e.Remaining)

	liveness := capability.Feature{ID: "silent_liveness", Category: capability.CategoryLiveness}
	assert.Nil(t, Resolve(snap, liveness))
	assert.Nil(t, Resolve(nil, idCard))
}

func TestIsExhausted(t *testing.T) {
	tests := []struct {
		entry *Entry
		want  bool
	}{
		{nil, false},
		{&Entry{Remaining: 1}, false},
		{&Entry{Remaining: 0}, true},
		{&Entry{Remaining: -3}, true},
		{&Entry{Limit: 0, Used: 0, Remaining: 5}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsExhausted(tt.entry))
	}
}

type stubSource struct {
	snaps []Snapshot
	err   error
	calls int
}

var _ Source = (*stubSource)(nil)

func (s *stubSource) FetchQuota(ctx context.Context) (Snapshot, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	snap := s.snaps[0]
	if len(s.snaps) > 1 {
		s.snaps = s.snaps[1:]
	}
	return snap, nil
}

func TestTracker_RefreshReplacesSnapshot(t *testing.T) {
	src := &stubSource{snaps: []Snapshot{
		{"id_card_ocr": {Remaining: 1}, "face": {Remaining: 3}},
		{"id_card_ocr": {Remaining: 0}},
	}}
	tr := NewTracker(src)
	assert.Nil(t, tr.Snapshot())
	assert.True(t, tr.FetchedAt().IsZero())

	require.NoError(t, tr.Refresh(context.Background()))
	_, err := tr.Check(idCard)
	require.NoError(t, err)
	assert.Len(t, tr.Snapshot(), 2)

	require.NoError(t, tr.Refresh(context.Background()))
	e, err := tr.Check(idCard)
	assert.True(t, errors.Is(err, ErrExhausted))
	require.NotNil(t, e)
	assert.Len(t, tr.Snapshot(), 1, "refresh is a full replacement")
	assert.Equal(t, 2, src.calls)
}

func TestTracker_RefreshFailureKeepsPrevious(t *testing.T) {
	src := &stubSource{snaps: []Snapshot{{"ocr": {Remaining: 2}}}}
	tr := NewTracker(src)
	require.NoError(t, tr.Refresh(context.Background()))

	src.err = errors.New("backend down")
	assert.Error(t, tr.Refresh(context.Background()))
	e := tr.Lookup(idCard)
	require.NotNil(t, e)
	assert.Equal(t, int64(2), e.Remaining)
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	reset := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	orig := Snapshot{"ocr": {Remaining: 2, ResetAt: &reset}}
	cp := orig.Clone()
	*cp["ocr"].ResetAt = time.Time{}
	cp["face"] = Entry{}

	assert.Equal(t, reset, *orig["ocr"].ResetAt)
	assert.NotContains(t, orig, "face")
}
