package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLockout(t *testing.T, maxAttempts int, window time.Duration) (*LoginLockout, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLoginLockout(client, maxAttempts, window), mr
}

func TestLoginLockout_LocksAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	lockout, _ := newTestLockout(t, 3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := lockout.RecordFailure(ctx, "jane@x.com"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	if locked, _ := lockout.Locked(ctx, "jane@x.com"); locked {
		t.Fatal("locked before reaching max attempts")
	}

	if err := lockout.RecordFailure(ctx, "jane@x.com"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	locked, err := lockout.Locked(ctx, "jane@x.com")
	if err != nil {
		t.Fatalf("Locked() error = %v", err)
	}
	if !locked {
		t.Fatal("expected email to be locked")
	}
	if other, _ := lockout.Locked(ctx, "john@x.com"); other {
		t.Fatal("lockout leaked to another email")
	}
}

func TestLoginLockout_WindowExpires(t *testing.T) {
	ctx := context.Background()
	lockout, mr := newTestLockout(t, 1, time.Minute)

	if err := lockout.RecordFailure(ctx, "jane@x.com"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if locked, _ := lockout.Locked(ctx, "jane@x.com"); !locked {
		t.Fatal("expected lock")
	}

	mr.FastForward(2 * time.Minute)
	if locked, _ := lockout.Locked(ctx, "jane@x.com"); locked {
		t.Fatal("lock should expire with the window")
	}
}

func TestLoginLockout_Reset(t *testing.T) {
	ctx := context.Background()
	lockout, _ := newTestLockout(t, 1, time.Minute)

	_ = lockout.RecordFailure(ctx, "jane@x.com")
	if err := lockout.Reset(ctx, "jane@x.com"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if locked, _ := lockout.Locked(ctx, "jane@x.com"); locked {
		t.Fatal("reset should clear the lock")
	}
}

func TestLoginLockout_DisabledWithoutClient(t *testing.T) {
	ctx := context.Background()
	lockout := NewLoginLockout(nil, 1, time.Minute)
	if err := lockout.RecordFailure(ctx, "jane@x.com"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if locked, err := lockout.Locked(ctx, "jane@x.com"); locked || err != nil {
		t.Fatalf("Locked() = %v, %v; want false, nil", locked, err)
	}
}
