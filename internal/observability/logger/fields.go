package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar para mantener nombres consistentes en todos los logs.

// ── HTTP ──

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }

// ── Identidad / tenancy ──

func TenantID(v string) zap.Field    { return zap.String("tenant_id", v) }
func PrincipalID(v string) zap.Field { return zap.String("principal_id", v) }
func Email(v string) zap.Field       { return zap.String("email", v) } // cuidado en prod
func JTI(v string) zap.Field         { return zap.String("jti", v) }
func TokenType(v string) zap.Field   { return zap.String("token_type", v) }
func Guard(v string) zap.Field       { return zap.String("guard", v) }
func Permission(v string) zap.Field  { return zap.String("permission", v) }
func Scope(v string) zap.Field       { return zap.String("scope", v) }

// ── Sistema ──

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }

// ── Genéricos ──

func Count(v int) zap.Field             { return zap.Int("count", v) }
func Key(v string) zap.Field            { return zap.String("key", v) }
func String(key, v string) zap.Field    { return zap.String(key, v) }
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }
func Dur(v time.Duration) zap.Field     { return zap.Duration("duration", v) }
