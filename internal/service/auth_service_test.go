package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository"
	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

func newTestAuthService(t *testing.T, lockout *auth.LoginLockout) (*AuthService, *auth.TokenManager) {
	t.Helper()
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	tokens := auth.NewTokenManager("test-secret", "field-service-test", time.Hour)
	svc := NewAuthService(AuthDependencies{
		UserRepo: repository.NewMemoryStore().Users(),
		Tokens:   tokens,
		Hasher:   hasher,
		Lockout:  lockout,
		Metrics:  observability.NewMetrics(),
	})
	return svc, tokens
}

func TestAuthService_RegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newTestAuthService(t, nil)

	registered, err := svc.Register(ctx, " Jane ", " Jane@X.com ", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if registered.User.Email != "jane@x.com" || registered.User.Name != "Jane" {
		t.Fatalf("Register() user = %+v", registered.User)
	}
	if registered.User.PasswordHash == "secret1" || registered.User.PasswordHash == "" {
		t.Fatal("password was not hashed")
	}

	loggedIn, err := svc.Login(ctx, "JANE@x.com", "secret1")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	userID, err := tokens.VerifyToken(loggedIn.Token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if userID != registered.User.ID {
		t.Fatalf("token user = %q, want %q", userID, registered.User.ID)
	}
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, nil)

	if _, err := svc.Register(ctx, "Jane", "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	_, err := svc.Register(ctx, "Other Jane", "JANE@x.com", "secret2")
	if !apperrors.IsCode(err, apperrors.CodeDuplicateEmail) {
		t.Fatalf("Register() error = %v, want DUPLICATE_EMAIL", err)
	}
}

func TestAuthService_LoginFailuresLookAlike(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestAuthService(t, nil)

	if _, err := svc.Register(ctx, "Jane", "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, wrongPassword := svc.Login(ctx, "jane@x.com", "nope")
	_, unknownEmail := svc.Login(ctx, "ghost@x.com", "secret1")

	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown email": unknownEmail} {
		de := apperrors.ToDomainError(err)
		if de.Code != apperrors.CodeUnauthenticated || de.Message != invalidCredentialsMessage {
			t.Errorf("%s: got %s %q", name, de.Code, de.Message)
		}
	}
}

func TestAuthService_LoginLockout(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, _ := newTestAuthService(t, auth.NewLoginLockout(client, 3, time.Minute))
	if _, err := svc.Register(ctx, "Jane", "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Login(ctx, "jane@x.com", "wrong"); !apperrors.IsCode(err, apperrors.CodeUnauthenticated) {
			t.Fatalf("attempt %d error = %v", i+1, err)
		}
	}

	_, err := svc.Login(ctx, "jane@x.com", "secret1")
	if !apperrors.IsCode(err, apperrors.CodeTooManyRequests) {
		t.Fatalf("Login() while locked error = %v, want TOO_MANY_REQUESTS", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := svc.Login(ctx, "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Login() after window error = %v", err)
	}
	if mr.Exists("fieldservice:login_failures:jane@x.com") {
		t.Fatal("failure counter not cleared after successful login")
	}
}

func TestAuthService_LockoutFailsOpen(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, _ := newTestAuthService(t, auth.NewLoginLockout(client, 3, time.Minute))
	if _, err := svc.Register(ctx, "Jane", "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	mr.Close()
	if _, err := svc.Login(ctx, "jane@x.com", "secret1"); err != nil {
		t.Fatalf("Login() with redis down error = %v", err)
	}
}
