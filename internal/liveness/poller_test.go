package liveness

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPoller_StopsWhenDone(t *testing.T) {
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5}
	n, err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		return attempt == 3, nil
	})
	if err != nil || n != 3 {
		t.Errorf("Poll() = (%d, %v), want (3, nil)", n, err)
	}
}

func TestPoller_CapsAttempts(t *testing.T) {
	calls := 0
	p := Poller{Interval: time.Millisecond, MaxAttempts: 4}
	n, err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		calls++
		return false, nil
	})
	if !errors.Is(err, ErrVerificationTimeout) {
		t.Errorf("err = %v, want ErrVerificationTimeout", err)
	}
	if n != 4 || calls != 4 {
		t.Errorf("attempts = %d, calls = %d, want 4", n, calls)
	}
}

func TestPoller_CheckErrorAborts(t *testing.T) {
	boom := errors.New("unauthorized")
	p := Poller{Interval: time.Millisecond, MaxAttempts: 10}
	n, err := p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) || n != 1 {
		t.Errorf("Poll() = (%d, %v), want (1, boom)", n, err)
	}
}

func TestPoller_RespectsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Poller{Interval: time.Hour, MaxAttempts: 10}
	n, err := p.Poll(ctx, func(ctx context.Context, attempt int) (bool, error) {
		t.Fatal("check should not run")
		return false, nil
	})
	if err == nil || n != 0 {
		t.Errorf("Poll() = (%d, %v), want (0, error)", n, err)
	}
}

func TestPoller_Cadence(t *testing.T) {
	p := Poller{Interval: 20 * time.Millisecond, MaxAttempts: 3}
	start := time.Now()
	_, _ = p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		return false, nil
	})
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("3 polls at 20ms took %v, expected at least 50ms", elapsed)
	}
}

func TestPoller_IntervalFollowsSlowCheck(t *testing.T) {
	p := Poller{Interval: 30 * time.Millisecond, MaxAttempts: 2}
	var finished, started time.Time
	_, _ = p.Poll(context.Background(), func(ctx context.Context, attempt int) (bool, error) {
		if attempt == 1 {
			time.Sleep(50 * time.Millisecond)
			finished = time.Now()
			return false, nil
		}
		started = time.Now()
		return true, nil
	})
	if gap := started.Sub(finished); gap < 25*time.Millisecond {
		t.Errorf("second poll started %v after a slow first check, expected about 30ms", gap)
	}
}

func TestParseVariant(t *testing.T) {
	if v, err := ParseVariant("rgb"); err != nil || v != VariantRGB {
		t.Errorf("ParseVariant(rgb) = %v, %v", v, err)
	}
	if _, err := ParseVariant("voice"); err == nil {
		t.Error("expected error for unknown variant")
	}
}
