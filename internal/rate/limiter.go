// Package rate implementa la mitigación de fuerza bruta: contadores de
// intentos fallidos por (scope, identity) con ventana TTL en el store
// compartido. Los incrementos son atómicos (dos logins paralelos nunca
// leen ambos el contador N y siguen).
//
// En un login exitoso el caller limpia el contador del identity (Reset)
// y decae parcialmente el del origen (Decay) — nunca a cero, para
// conservar defensa contra credential stuffing distribuido desde una
// misma IP.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/metrics"
	"github.com/nexaerp/authd/internal/observability/logger"
)

// Scopes estándar del subsistema.
const (
	ScopeLoginEmail = "login:email"
	ScopeLoginIP    = "login:ip"
	ScopeTwoFactor  = "2fa:principal"
)

// Limit por scope. AlertThreshold (> Max) dispara el aviso de seguridad
// al sink de auditoría.
type Limit struct {
	Max            int64
	Window         time.Duration
	AlertThreshold int64
}

// Result de una consulta Allow.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter struct {
	store  cache.Client
	sink   audit.Sink
	limits map[string]Limit
	def    Limit
}

// NewLimiter crea el limiter con límites por scope; def aplica a scopes
// no listados.
func NewLimiter(store cache.Client, sink audit.Sink, limits map[string]Limit, def Limit) *Limiter {
	if def.Max <= 0 {
		def = Limit{Max: 5, Window: 15 * time.Minute, AlertThreshold: 20}
	}
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Limiter{store: store, sink: sink, limits: limits, def: def}
}

func (l *Limiter) limitFor(scope string) Limit {
	if lim, ok := l.limits[scope]; ok && lim.Max > 0 {
		if lim.Window <= 0 {
			lim.Window = l.def.Window
		}
		return lim
	}
	return l.def
}

func key(scope, identity string) string {
	return "rl:" + scope + ":" + strings.ReplaceAll(identity, " ", "_")
}

// Allow consulta el contador sin incrementarlo. No permite cuando el
// contador alcanzó el máximo; RetryAfter es el resto de la ventana.
//
// La lectura no reserva cupo: el Incr atómico de RecordFailure es la
// autoridad sobre el contador. Una ráfaga perfectamente paralela en
// máximo-1 puede pasar este chequeo más de una vez, pero en cuanto los
// fallos se registran el lockout aplica a todo intento posterior.
func (l *Limiter) Allow(ctx context.Context, scope, identity string) (Result, error) {
	lim := l.limitFor(scope)
	k := key(scope, identity)

	raw, err := l.store.Get(ctx, k)
	if err != nil {
		if cache.IsNotFound(err) {
			return Result{Allowed: true, Remaining: lim.Max}, nil
		}
		return Result{}, fmt.Errorf("rate: get %s: %w", k, err)
	}
	hits, _ := strconv.ParseInt(raw, 10, 64)

	remaining := lim.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	if hits < lim.Max {
		return Result{Allowed: true, Remaining: remaining}, nil
	}

	ttl, err := l.store.TTL(ctx, k)
	if err != nil || ttl <= 0 {
		ttl = lim.Window
	}
	metrics.RateLimitRejections.WithLabelValues(scope).Inc()
	return Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
}

// RecordFailure incrementa el contador con ventana deslizante. Cruzar el
// AlertThreshold emite un evento de seguridad (posible ataque dirigido).
func (l *Limiter) RecordFailure(ctx context.Context, scope, identity string) error {
	lim := l.limitFor(scope)
	hits, err := l.store.Incr(ctx, key(scope, identity), lim.Window)
	if err != nil {
		return fmt.Errorf("rate: incr: %w", err)
	}
	if lim.AlertThreshold > 0 && hits == lim.AlertThreshold {
		l.sink.LogEvent(ctx, audit.EventLockoutAlert, map[string]any{
			"scope": scope,
			"hits":  hits,
		})
		logger.From(ctx).Warn("rate limit alert threshold crossed",
			logger.Scope(scope), logger.Int("hits", int(hits)))
	}
	return nil
}

// Reset limpia el contador del identity (login exitoso).
func (l *Limiter) Reset(ctx context.Context, scope, identity string) error {
	return l.store.Delete(ctx, key(scope, identity))
}

// Decay reduce el contador a la mitad conservando la ventana. Nunca lo
// deja en cero: un origen con fallos acumulados retiene algo de historia
// aunque haya logrado un login válido.
func (l *Limiter) Decay(ctx context.Context, scope, identity string) error {
	k := key(scope, identity)
	raw, err := l.store.Get(ctx, k)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil
		}
		return err
	}
	hits, _ := strconv.ParseInt(raw, 10, 64)
	if hits <= 1 {
		return nil
	}
	half := hits / 2
	if half < 1 {
		half = 1
	}
	return l.store.SetCounter(ctx, k, half)
}
