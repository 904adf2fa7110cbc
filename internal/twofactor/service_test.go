package twofactor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/security/secretbox"
	"github.com/nexaerp/authd/internal/security/totp"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/store/memory"
)

func testSetup(t *testing.T) (*Service, *core.Principal) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	box, err := secretbox.NewFromBytes(key)
	if err != nil {
		t.Fatalf("secretbox: %v", err)
	}
	st := memory.New()
	p := &core.Principal{ID: "u1", Email: "admin@acme.com", Active: true}
	st.AddPrincipal(*p)

	svc := NewService(st.TwoFactor(), box, audit.NopSink{}, "NexaERP")
	return svc, p
}

// codeFor genera el TOTP válido para el secret del enrollment.
func codeFor(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	raw, err := totp.DecodeSecret(secret)
	if err != nil {
		t.Fatalf("decode secret: %v", err)
	}
	return totp.Code(raw, at)
}

func TestStateMachine_EnableConfirmVerifyDisable(t *testing.T) {
	t.Parallel()
	svc, p := testSetup(t)
	ctx := context.Background()

	// Unset: no enabled
	enabled, err := svc.Enabled(ctx, p.ID)
	if err != nil || enabled {
		t.Fatalf("Enabled on unset = %v, %v", enabled, err)
	}

	// Enable → Pending
	enr, err := svc.Enable(ctx, p)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if len(enr.BackupCodes) != backupCodeCount {
		t.Fatalf("want %d backup codes, got %d", backupCodeCount, len(enr.BackupCodes))
	}
	if enabled, _ := svc.Enabled(ctx, p.ID); enabled {
		t.Fatalf("pending credential reported as enabled")
	}

	// Verify en Pending: rechazado (aún sin confirmar)
	if err := svc.Verify(ctx, p.ID, codeFor(t, enr.Secret, time.Now())); !errors.Is(err, autherr.ErrAuthentication) {
		t.Fatalf("Verify on pending should fail, got %v", err)
	}

	// Confirm con código inválido: sigue Pending
	if err := svc.Confirm(ctx, p.ID, "000000"); !errors.Is(err, autherr.ErrAuthentication) {
		t.Fatalf("Confirm with bad code: want auth error, got %v", err)
	}

	// Confirm → Active
	if err := svc.Confirm(ctx, p.ID, codeFor(t, enr.Secret, time.Now())); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if enabled, _ := svc.Enabled(ctx, p.ID); !enabled {
		t.Fatalf("confirmed credential not enabled")
	}

	// Enable sobre Active: rechazado
	if _, err := svc.Enable(ctx, p); !errors.Is(err, ErrAlreadyEnabled) {
		t.Fatalf("Enable on active: want ErrAlreadyEnabled, got %v", err)
	}

	// Disable → Unset
	if err := svc.Disable(ctx, p.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if enabled, _ := svc.Enabled(ctx, p.ID); enabled {
		t.Fatalf("disabled credential still enabled")
	}
}

func TestVerify_TOTPAntiReplay(t *testing.T) {
	t.Parallel()
	svc, p := testSetup(t)
	ctx := context.Background()

	enr, err := svc.Enable(ctx, p)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	// Confirmar con el step anterior para no quemar el actual
	if err := svc.Confirm(ctx, p.ID, codeFor(t, enr.Secret, time.Now().Add(-totp.Period))); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	code := codeFor(t, enr.Secret, time.Now())
	if err := svc.Verify(ctx, p.ID, code); err != nil {
		t.Fatalf("first Verify: %v", err)
	}
	// Mismo código otra vez: replay rechazado
	if err := svc.Verify(ctx, p.ID, code); !errors.Is(err, autherr.ErrAuthentication) {
		t.Fatalf("replayed TOTP accepted: %v", err)
	}
}

func TestVerify_BackupCodeSingleUse(t *testing.T) {
	t.Parallel()
	svc, p := testSetup(t)
	ctx := context.Background()

	enr, err := svc.Enable(ctx, p)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := svc.Confirm(ctx, p.ID, codeFor(t, enr.Secret, time.Now())); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	backup := enr.BackupCodes[3]
	if err := svc.Verify(ctx, p.ID, backup); err != nil {
		t.Fatalf("backup code rejected on first use: %v", err)
	}
	// Reenvío del mismo código: consumido, falla
	if err := svc.Verify(ctx, p.ID, backup); !errors.Is(err, autherr.ErrAuthentication) {
		t.Fatalf("consumed backup code accepted again: %v", err)
	}
	// Otro código de la lista sigue sirviendo
	if err := svc.Verify(ctx, p.ID, enr.BackupCodes[7]); err != nil {
		t.Fatalf("other backup code rejected: %v", err)
	}
}

func TestVerify_GarbageCode(t *testing.T) {
	t.Parallel()
	svc, p := testSetup(t)
	ctx := context.Background()

	enr, err := svc.Enable(ctx, p)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := svc.Confirm(ctx, p.ID, codeFor(t, enr.Secret, time.Now())); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	for _, code := range []string{"", "abc", "999999", "not-a-backup-code"} {
		if err := svc.Verify(ctx, p.ID, code); !errors.Is(err, autherr.ErrAuthentication) {
			t.Fatalf("code %q: want auth error, got %v", code, err)
		}
	}
}

// counterFailRepo simula un store que no puede persistir el last counter.
type counterFailRepo struct {
	core.TwoFactorRepository
}

func (counterFailRepo) UpdateLastCounter(context.Context, string, int64) error {
	return errors.New("store down")
}

func TestConfirm_CounterPersistFailureFailsClosed(t *testing.T) {
	t.Parallel()
	key := make([]byte, 32)
	box, err := secretbox.NewFromBytes(key)
	if err != nil {
		t.Fatalf("secretbox: %v", err)
	}
	st := memory.New()
	p := &core.Principal{ID: "u1", Email: "admin@acme.com", Active: true}
	st.AddPrincipal(*p)

	svc := NewService(counterFailRepo{st.TwoFactor()}, box, audit.NopSink{}, "NexaERP")
	ctx := context.Background()

	enr, err := svc.Enable(ctx, p)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}

	// Sin el counter registrado, el código de confirmación seguiría
	// siendo replayable: Confirm debe fallar cerrado y dejar Pending.
	err = svc.Confirm(ctx, p.ID, codeFor(t, enr.Secret, time.Now()))
	if !errors.Is(err, autherr.ErrAuthentication) {
		t.Fatalf("Confirm with failing counter store: want auth error, got %v", err)
	}
	if enabled, _ := svc.Enabled(ctx, p.ID); enabled {
		t.Fatalf("credential must stay pending when the counter write fails")
	}
}
