package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/metrics"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/rate"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/twofactor"
	"github.com/nexaerp/authd/internal/util"
)

// authenticator concentra la parte de Attempt que no depende de la
// estrategia: rate limiting, validación de credenciales y detección de
// 2FA. Los guards la embeben y sólo aportan la emisión de su artefacto
// (par de tokens o sesión).
type authenticator struct {
	creds     *store.CredentialStore
	twofactor *twofactor.Service
	limiter   *rate.Limiter
	sink      audit.Sink
}

// emailKey combina tenant y email para que el contador per-email no
// cruce tenants: el mismo mail en dos tenants son dos cuentas.
func emailKey(tenantID, email string) string {
	return tenantID + "|" + strings.ToLower(strings.TrimSpace(email))
}

// checkRate consulta ambos scopes sin incrementar. Devuelve
// *autherr.RateLimitError cuando alguno está bloqueado.
func (a *authenticator) checkRate(ctx context.Context, creds Credentials) error {
	ek := emailKey(creds.TenantID, creds.Email)
	res, err := a.limiter.Allow(ctx, rate.ScopeLoginEmail, ek)
	if err != nil {
		return err
	}
	if !res.Allowed {
		return &autherr.RateLimitError{RetryAfter: res.RetryAfter}
	}
	if creds.Origin != "" {
		res, err = a.limiter.Allow(ctx, rate.ScopeLoginIP, creds.Origin)
		if err != nil {
			return err
		}
		if !res.Allowed {
			return &autherr.RateLimitError{RetryAfter: res.RetryAfter}
		}
	}
	return nil
}

// recordFailure incrementa ambos contadores. El error se loguea y se
// descarta: una falla del backend de conteo no debe enmascarar la razón
// real del rechazo.
func (a *authenticator) recordFailure(ctx context.Context, creds Credentials) {
	ek := emailKey(creds.TenantID, creds.Email)
	if err := a.limiter.RecordFailure(ctx, rate.ScopeLoginEmail, ek); err != nil {
		logger.From(ctx).Error("rate record failure", logger.Err(err))
	}
	if creds.Origin != "" {
		if err := a.limiter.RecordFailure(ctx, rate.ScopeLoginIP, creds.Origin); err != nil {
			logger.From(ctx).Error("rate record failure", logger.Err(err))
		}
	}
}

// onSuccess limpia el contador del email y decae (sin borrar) el del
// origen, para retener historia de IPs ruidosas.
func (a *authenticator) onSuccess(ctx context.Context, creds Credentials, p *core.Principal) {
	if err := a.limiter.Reset(ctx, rate.ScopeLoginEmail, emailKey(creds.TenantID, creds.Email)); err != nil {
		logger.From(ctx).Error("rate reset", logger.Err(err))
	}
	if creds.Origin != "" {
		if err := a.limiter.Decay(ctx, rate.ScopeLoginIP, creds.Origin); err != nil {
			logger.From(ctx).Error("rate decay", logger.Err(err))
		}
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	a.sink.LogEvent(ctx, audit.EventLoginSuccess, map[string]any{
		"tenant_id":    creds.TenantID,
		"principal_id": p.ID,
	})
}

// rejected empaqueta un rechazo: contadores, métrica, evento de
// auditoría. Al caller le llega siempre el mismo genérico.
func (a *authenticator) rejected(ctx context.Context, creds Credentials, reason error) *Outcome {
	a.recordFailure(ctx, creds)
	metrics.LoginAttempts.WithLabelValues("failure").Inc()
	a.sink.LogEvent(ctx, audit.EventLoginFailed, map[string]any{
		"tenant_id": creds.TenantID,
		"email":     util.MaskEmail(creds.Email),
	})
	logger.From(ctx).Info("login rejected",
		logger.TenantID(creds.TenantID), logger.Err(reason))
	return &Outcome{Status: StatusRejected, Reason: reason}
}

// authenticate corre el flujo común. Devuelve (principal, nil, nil) si
// el login puede completarse, (nil, outcome, nil) si fue rechazado o
// requiere 2FA en manos del guard, y error para fallas de infra o rate
// limit.
func (a *authenticator) authenticate(ctx context.Context, creds Credentials) (*core.Principal, *Outcome, error) {
	if err := a.checkRate(ctx, creds); err != nil {
		return nil, nil, err
	}

	p, err := a.creds.RetrieveByCredentials(ctx, creds.Credentials)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, a.rejected(ctx, creds, autherr.ErrInvalidCredentials), nil
		}
		return nil, nil, fmt.Errorf("guard: retrieve principal: %w", err)
	}
	if !a.creds.ValidateCredentials(p, creds.Credentials) {
		return nil, a.rejected(ctx, creds, autherr.ErrInvalidCredentials), nil
	}
	// Cuenta deshabilitada o sin membresía activa en el tenant: mismo
	// genérico hacia afuera, razón real sólo en logs/auditoría.
	if !p.Active {
		return nil, a.rejected(ctx, creds, autherr.ErrAccountDisabled), nil
	}
	if !p.ActiveIn(creds.TenantID) {
		return nil, a.rejected(ctx, creds, autherr.ErrAccountDisabled), nil
	}
	return p, nil, nil
}

// needsTwoFactor reporta si el principal tiene 2FA confirmado. Falla
// cerrado: si no se puede saber, se exige.
func (a *authenticator) needsTwoFactor(ctx context.Context, principalID string) (bool, error) {
	enabled, err := a.twofactor.Enabled(ctx, principalID)
	if err != nil {
		return true, fmt.Errorf("guard: two-factor lookup: %w", err)
	}
	return enabled, nil
}

// verifyTwoFactorCode valida el código con su rate limiting por
// principal. Devuelve el outcome de rechazo, o nil si el código es
// válido.
func (a *authenticator) verifyTwoFactorCode(ctx context.Context, principalID, tenantID, code string) (*Outcome, error) {
	res, err := a.limiter.Allow(ctx, rate.ScopeTwoFactor, principalID)
	if err != nil {
		return nil, err
	}
	if !res.Allowed {
		return nil, &autherr.RateLimitError{RetryAfter: res.RetryAfter}
	}
	if err := a.twofactor.Verify(ctx, principalID, code); err != nil {
		if rerr := a.limiter.RecordFailure(ctx, rate.ScopeTwoFactor, principalID); rerr != nil {
			logger.From(ctx).Error("rate record failure", logger.Err(rerr))
		}
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		a.sink.LogEvent(ctx, audit.EventLoginFailed, map[string]any{
			"tenant_id":    tenantID,
			"principal_id": principalID,
			"stage":        "two_factor",
		})
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrTwoFactorCode}, nil
	}
	if err := a.limiter.Reset(ctx, rate.ScopeTwoFactor, principalID); err != nil {
		logger.From(ctx).Error("rate reset", logger.Err(err))
	}
	return nil, nil
}
