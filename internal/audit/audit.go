// Package audit define el sink de eventos de seguridad.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/nexaerp/authd/internal/observability/logger"
)

// Nombres de evento estables (los consume el SIEM downstream).
const (
	EventLoginSuccess       = "auth.login_success"
	EventLoginFailed        = "auth.login_failed"
	EventLockoutAlert       = "auth.lockout_alert"
	EventTokenRevoked       = "auth.token_revoked"
	EventTwoFactorEnabled   = "auth.two_factor_enabled"
	EventTwoFactorDisabled  = "auth.two_factor_disabled"
	EventIsolationViolation = "auth.tenant_isolation_violation"
)

// Sink recibe eventos de auditoría. La implementación interna (DB, cola,
// SIEM) queda fuera de este subsistema.
type Sink interface {
	LogEvent(ctx context.Context, name string, fields map[string]any)
}

// ZapSink escribe los eventos como logs estructurados.
type ZapSink struct{}

func NewZapSink() *ZapSink { return &ZapSink{} }

func (ZapSink) LogEvent(ctx context.Context, name string, fields map[string]any) {
	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, logger.String("audit_event", name))
	for k, v := range fields {
		zf = append(zf, logger.Any(k, v))
	}
	logger.From(ctx).Info("audit", zf...)
}

// NopSink descarta todo. Para tests.
type NopSink struct{}

func (NopSink) LogEvent(context.Context, string, map[string]any) {}
