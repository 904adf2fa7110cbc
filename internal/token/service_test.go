package token

import (
	"context"
	"errors"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/cache"
)

var testKey = []byte("0123456789abcdef0123456789abcdef") // 32 bytes

func testService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Config{
		Issuer:    "https://auth.nexaerp.test",
		Key:       testKey,
		Algorithm: "HS256",
		AccessTTL: time.Hour,
	}, cache.NewMemory("test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestNew_RejectsShortKey(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Issuer: "x", Key: []byte("short"), Algorithm: "HS256"}, cache.NewMemory(""))
	if err == nil {
		t.Fatalf("expected ConfigError for short key")
	}
	var ce *autherr.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("want ConfigError, got %T: %v", err, err)
	}
}

func TestNew_RejectsUnknownAlgorithm(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Issuer: "x", Key: testKey, Algorithm: "RS256"}, cache.NewMemory(""))
	if err == nil {
		t.Fatalf("expected error for algorithm outside allow-list")
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	raw, issued, err := svc.Issue("user-1", "tenant-a", TypeAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := svc.Verify(ctx, raw, TypeAccess)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.TenantID != "tenant-a" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.ID != issued.ID {
		t.Fatalf("jti mismatch")
	}
}

func TestVerify_RejectsMalformedStructure(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	for _, raw := range []string{"", "abc", "a.b", "a.b.c.d"} {
		if _, err := svc.Verify(context.Background(), raw, TypeAccess); err != autherr.ErrInvalidToken {
			t.Fatalf("raw %q: want ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	// Token firmado con la misma clave pero exp en el pasado (fuera del leeway)
	raw := signManual(t, jwtv5.SigningMethodHS256, &Claims{
		TenantID:  "tenant-a",
		TokenType: TypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    "https://auth.nexaerp.test",
			Subject:   "user-1",
			ID:        "jti-exp",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(-5 * time.Minute)),
		},
	})
	if _, err := svc.Verify(context.Background(), raw, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_RejectsNotYetValid(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	raw := signManual(t, jwtv5.SigningMethodHS256, &Claims{
		TokenType: TypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    "https://auth.nexaerp.test",
			Subject:   "user-1",
			ID:        "jti-nbf",
			NotBefore: jwtv5.NewNumericDate(time.Now().Add(10 * time.Minute)),
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := svc.Verify(context.Background(), raw, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for nbf in future, got %v", err)
	}
}

func TestVerify_RejectsWrongIssuer(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	raw := signManual(t, jwtv5.SigningMethodHS256, &Claims{
		TokenType: TypeAccess,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    "https://evil.example",
			Subject:   "user-1",
			ID:        "jti-iss",
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := svc.Verify(context.Background(), raw, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestVerify_RejectsTypeMismatch(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	raw, _, err := svc.Issue("user-1", "tenant-a", TypeRefresh)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Un refresh token nunca sirve como access token
	if _, err := svc.Verify(context.Background(), raw, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for type mismatch, got %v", err)
	}
}

func TestVerify_RejectsTamperedSignature(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	raw, _, err := svc.Issue("user-1", "tenant-a", TypeAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tampered := raw[:len(raw)-2] + "xx"
	if _, err := svc.Verify(context.Background(), tampered, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for bad signature, got %v", err)
	}
}

func TestRevoke_BeatsValidExpiry(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	raw, claims, err := svc.Issue("user-1", "tenant-a", TypeAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Revoke(ctx, raw); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if revoked, _ := svc.IsRevoked(ctx, claims.ID); !revoked {
		t.Fatalf("IsRevoked = false after Revoke")
	}
	// Aún dentro de la ventana [nbf, exp) pero revocado
	if _, err := svc.Verify(ctx, raw, TypeAccess); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken for revoked token, got %v", err)
	}
}

func TestRefresh_RotationInvalidatesOldToken(t *testing.T) {
	t.Parallel()
	svc := testService(t)
	ctx := context.Background()

	pair, err := svc.IssuePair("user-1", "tenant-a")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	newPair, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if newPair.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation returned the same refresh token")
	}

	// Replay del refresh viejo: rechazado
	if _, err := svc.Refresh(ctx, pair.RefreshToken); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken on refresh replay, got %v", err)
	}

	// El nuevo sigue sirviendo
	if _, err := svc.Verify(ctx, newPair.RefreshToken, TypeRefresh); err != nil {
		t.Fatalf("new refresh token rejected: %v", err)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	t.Parallel()
	svc := testService(t)

	raw, _, err := svc.Issue("user-1", "tenant-a", TypeAccess)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), raw); err != autherr.ErrInvalidToken {
		t.Fatalf("want ErrInvalidToken refreshing with access token, got %v", err)
	}
}

// ─── helpers ───

func signManual(t *testing.T, method jwtv5.SigningMethod, claims *Claims) string {
	t.Helper()
	tk := jwtv5.NewWithClaims(method, claims)
	raw, err := tk.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}
