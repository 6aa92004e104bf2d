package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anime-shed/kyc-console-go/internal/errors"
	"github.com/anime-shed/kyc-console-go/internal/storage"
	"github.com/anime-shed/kyc-console-go/pkg/validation"
)

type stubSource struct {
	name   string
	prefix string
	err    error
	seen   []string
}

func (s *stubSource) Fetch(ctx context.Context, location string) (storage.Object, error) {
	s.seen = append(s.seen, location)
	if s.err != nil {
		return storage.Object{}, s.err
	}
	return storage.Object{Name: s.name, Data: []byte(s.name)}, nil
}

func (s *stubSource) Handles(location string) bool { return strings.HasPrefix(location, s.prefix) }

var _ ScopedSource = (*stubSource)(nil)

func TestSourceRepository_Routing(t *testing.T) {
	local := &stubSource{name: "local"}
	remote := &stubSource{name: "remote"}
	blob := &stubSource{name: "blob", prefix: "https://acct.blob.core.windows.net/"}
	repo := NewSourceRepository(remote, validation.NewSourceURLValidator(), WithLocal(local), WithScoped(blob))

	tests := []struct {
		location string
		want     string
	}{
		{"/tmp/card.jpg", "local"},
		{"file:///tmp/card.jpg", "local"},
		{"https://example.com/card.jpg", "remote"},
		{"https://acct.blob.core.windows.net/inputs/card.jpg", "blob"},
	}
	for _, tt := range tests {
		obj, err := repo.Load(context.Background(), tt.location)
		require.NoError(t, err, tt.location)
		assert.Equal(t, tt.want, obj.Name, tt.location)
	}
}

func TestSourceRepository_Rejections(t *testing.T) {
	remote := &stubSource{name: "remote"}
	repo := NewSourceRepository(remote, validation.NewSourceURLValidator())

	for _, loc := range []string{"", "/etc/passwd", "ftp://example.com/a.jpg", "https://u:p@example.com/a.jpg"} {
		_, err := repo.Load(context.Background(), loc)
		require.Error(t, err, loc)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "%s: %v", loc, err)
	}
	assert.Empty(t, remote.seen, "rejected locations never reach a source")
}

func TestSourceRepository_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantType apperrors.ErrorType
		sentinel error
	}{
		{fmt.Errorf("%w: x", storage.ErrNotFound), apperrors.ErrorTypeNotFound, ErrSourceNotFound},
		{storage.ErrTooLarge, apperrors.ErrorTypeValidation, storage.ErrTooLarge},
		{errors.New("connection reset"), apperrors.ErrorTypeNetwork, ErrSourceUnavailable},
	}
	for _, tt := range tests {
		repo := NewSourceRepository(&stubSource{err: tt.err}, validation.NewSourceURLValidator())
		_, err := repo.Load(context.Background(), "https://example.com/a.jpg?sig=secret")
		assert.True(t, apperrors.IsType(err, tt.wantType), "got %v", err)
		assert.ErrorIs(t, err, tt.sentinel)
	}
}
