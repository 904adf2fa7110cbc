// Package twofactor implementa el segundo factor TOTP con backup codes
// de un solo uso.
//
// Máquina de estados del credential:
//
//	Unset → Pending (Enable) → Active (Confirm) → Unset (Disable)
package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/security/secretbox"
	tokens "github.com/nexaerp/authd/internal/security/token"
	"github.com/nexaerp/authd/internal/security/totp"
	"github.com/nexaerp/authd/internal/store/core"
)

const (
	backupCodeCount = 10
	backupCodeBytes = 6 // 8 chars base64url
	totpWindowSteps = 1 // tolerancia de skew ±1 step, acotada
)

// ErrAlreadyEnabled: Enable sobre un credential ya activo. Hay que
// deshabilitar primero.
var ErrAlreadyEnabled = errors.New("twofactor: already enabled")

// Enrollment es el resultado de Enable. Los backup codes se muestran una
// sola vez; sólo sus hashes se persisten.
type Enrollment struct {
	Secret      string // base32, para apps TOTP
	OTPAuthURL  string
	BackupCodes []string
}

type Service struct {
	repo   core.TwoFactorRepository
	box    *secretbox.Box
	sink   audit.Sink
	issuer string
	now    func() time.Time
}

func NewService(repo core.TwoFactorRepository, box *secretbox.Box, sink audit.Sink, issuer string) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Service{repo: repo, box: box, sink: sink, issuer: issuer, now: time.Now}
}

// Enable genera secret + backup codes y deja el credential en Pending.
// No activa nada: el principal debe confirmar con un código válido.
func (s *Service) Enable(ctx context.Context, p *core.Principal) (*Enrollment, error) {
	if existing, err := s.repo.Get(ctx, p.ID); err == nil && existing.Confirmed {
		return nil, ErrAlreadyEnabled
	} else if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	_, b32, err := totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("twofactor: secret: %w", err)
	}
	enc, err := s.box.Encrypt(b32)
	if err != nil {
		return nil, fmt.Errorf("twofactor: encrypt secret: %w", err)
	}
	if err := s.repo.UpsertPending(ctx, p.ID, enc); err != nil {
		return nil, err
	}

	codes := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	for i := 0; i < backupCodeCount; i++ {
		code, err := tokens.GenerateOpaque(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("twofactor: backup code: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, tokens.SHA256Base64URL(code))
	}
	if err := s.repo.SetBackupCodes(ctx, p.ID, hashes); err != nil {
		return nil, err
	}

	return &Enrollment{
		Secret:      b32,
		OTPAuthURL:  totp.OTPAuthURL(s.issuer, p.Email, b32),
		BackupCodes: codes,
	}, nil
}

// Confirm valida un código contra el secret pendiente y activa el 2FA.
func (s *Service) Confirm(ctx context.Context, principalID, code string) error {
	cred, err := s.repo.Get(ctx, principalID)
	if err != nil {
		return autherr.ErrTwoFactorCode
	}
	if cred.Confirmed {
		return ErrAlreadyEnabled
	}
	ok, counter := s.verifyTOTP(cred, code)
	if !ok {
		return autherr.ErrTwoFactorCode
	}
	// El counter se registra antes de activar: si no se puede persistir,
	// el código de confirmación seguiría siendo replayable vía Verify
	// dentro de la ventana de skew. Fail closed, igual que Verify.
	if err := s.repo.UpdateLastCounter(ctx, principalID, counter); err != nil {
		logger.From(ctx).Warn("update last counter failed", logger.Err(err))
		return autherr.ErrTwoFactorCode
	}
	if err := s.repo.Confirm(ctx, principalID); err != nil {
		return err
	}

	s.sink.LogEvent(ctx, audit.EventTwoFactorEnabled, map[string]any{"principal_id": principalID})
	return nil
}

// Verify valida TOTP (±1 step, anti-replay) O consume atómicamente un
// backup code. El backup code matcheado se elimina antes de que se
// construya la respuesta: nunca es reutilizable.
func (s *Service) Verify(ctx context.Context, principalID, code string) error {
	log := logger.From(ctx).With(logger.Component("twofactor"), logger.Op("Verify"))

	cred, err := s.repo.Get(ctx, principalID)
	if err != nil || !cred.Confirmed {
		return autherr.ErrTwoFactorCode
	}

	if ok, counter := s.verifyTOTP(cred, code); ok {
		if err := s.repo.UpdateLastCounter(ctx, principalID, counter); err != nil {
			// Si no podemos registrar el counter, el anti-replay queda
			// abierto: fail closed
			log.Warn("update last counter failed", logger.Err(err))
			return autherr.ErrTwoFactorCode
		}
		return nil
	}

	used, err := s.repo.UseBackupCode(ctx, principalID, tokens.SHA256Base64URL(code))
	if err != nil {
		log.Warn("backup code lookup failed", logger.Err(err))
		return autherr.ErrTwoFactorCode
	}
	if !used {
		return autherr.ErrTwoFactorCode
	}
	return nil
}

// Disable elimina el credential y sus backup codes.
func (s *Service) Disable(ctx context.Context, principalID string) error {
	if err := s.repo.Delete(ctx, principalID); err != nil {
		return err
	}
	s.sink.LogEvent(ctx, audit.EventTwoFactorDisabled, map[string]any{"principal_id": principalID})
	return nil
}

// Enabled reporta si el principal tiene 2FA activo (confirmado).
func (s *Service) Enabled(ctx context.Context, principalID string) (bool, error) {
	cred, err := s.repo.Get(ctx, principalID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred.Confirmed, nil
}

func (s *Service) verifyTOTP(cred *core.TwoFactorCredential, code string) (bool, int64) {
	b32, err := s.box.Decrypt(cred.SecretEncrypted)
	if err != nil {
		return false, 0
	}
	raw, err := totp.DecodeSecret(b32)
	if err != nil {
		return false, 0
	}
	return totp.Verify(raw, code, s.now(), totpWindowSteps, cred.LastCounterUsed)
}
