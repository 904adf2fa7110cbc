package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/observability/logger"
	tokens "github.com/nexaerp/authd/internal/security/token"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
)

const (
	sessionPrefix   = "sess:"
	challengePrefix = "2fa:challenge:"

	sessionIDBytes    = 32
	challengeBytes    = 32
	rememberBytes     = 32
	challengeTTL      = 5 * time.Minute
	defaultSessionTTL = 12 * time.Hour
)

// sessionRecord es lo que viaja al cache. El bearer del cliente es sólo
// el id opaco; todo el estado vive server-side.
type sessionRecord struct {
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// challengeRecord es un login a medio completar, esperando el código 2FA.
type challengeRecord struct {
	PrincipalID string `json:"principal_id"`
	TenantID    string `json:"tenant_id"`
	Remember    bool   `json:"remember"`
}

// SessionGuard autentica con sesiones opacas server-side en el cache TTL.
// La invalidación es inmediata (se borra la entrada) y el cliente nunca
// recibe claims, sólo un identificador aleatorio.
type SessionGuard struct {
	authenticator
	sessions   cache.Client
	creds      *store.CredentialStore
	sessionTTL time.Duration
}

var _ Guard = (*SessionGuard)(nil)

func (g *SessionGuard) Name() string { return "session" }

func (g *SessionGuard) Attempt(ctx context.Context, creds Credentials) (*Outcome, error) {
	p, outcome, err := g.authenticate(ctx, creds)
	if err != nil || outcome != nil {
		return outcome, err
	}

	needs2FA, err := g.needsTwoFactor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if needs2FA {
		// Challenge opaco de un solo uso: el estado pendiente queda en el
		// cache, no en manos del cliente.
		challenge, err := tokens.GenerateOpaque(challengeBytes)
		if err != nil {
			return nil, fmt.Errorf("guard: generate challenge: %w", err)
		}
		raw, _ := json.Marshal(challengeRecord{
			PrincipalID: p.ID,
			TenantID:    creds.TenantID,
			Remember:    creds.Remember,
		})
		if err := g.sessions.Set(ctx, challengePrefix+challenge, string(raw), challengeTTL); err != nil {
			return nil, fmt.Errorf("guard: store challenge: %w", err)
		}
		return &Outcome{Status: StatusTwoFactorRequired, TwoFactorToken: challenge}, nil
	}

	return g.establish(ctx, creds, p.ID)
}

// establish crea la sesión y, si se pidió, el remember-token.
func (g *SessionGuard) establish(ctx context.Context, creds Credentials, principalID string) (*Outcome, error) {
	id, err := tokens.GenerateOpaque(sessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("guard: generate session id: %w", err)
	}
	now := time.Now()
	rec := sessionRecord{
		PrincipalID: principalID,
		TenantID:    creds.TenantID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.sessionTTL),
	}
	raw, _ := json.Marshal(rec)
	if err := g.sessions.Set(ctx, sessionPrefix+id, string(raw), g.sessionTTL); err != nil {
		return nil, fmt.Errorf("guard: store session: %w", err)
	}

	out := &Outcome{
		Status:  StatusAuthenticated,
		Session: &Session{ID: id, ExpiresAt: rec.ExpiresAt},
	}
	if creds.Remember {
		remember, err := tokens.GenerateOpaque(rememberBytes)
		if err != nil {
			return nil, fmt.Errorf("guard: generate remember token: %w", err)
		}
		hash := tokens.SHA256Base64URL(remember)
		if err := g.creds.UpdateRememberToken(ctx, principalID, &hash); err != nil {
			return nil, fmt.Errorf("guard: persist remember token: %w", err)
		}
		out.RememberToken = remember
	}

	p, err := g.creds.RetrieveByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("guard: load principal: %w", err)
	}
	g.onSuccess(ctx, creds, p)
	return out, nil
}

func (g *SessionGuard) Login(ctx context.Context, p *core.Principal, tenantID string) (*Outcome, error) {
	if !p.Active || !p.ActiveIn(tenantID) {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrAccountDisabled}, nil
	}
	return g.establish(ctx, Credentials{Credentials: store.Credentials{TenantID: tenantID, Email: p.Email}}, p.ID)
}

func (g *SessionGuard) CompleteTwoFactor(ctx context.Context, twoFactorToken, code string) (*Outcome, error) {
	key := challengePrefix + twoFactorToken
	raw, err := g.sessions.Get(ctx, key)
	if err != nil {
		if cache.IsNotFound(err) {
			return &Outcome{Status: StatusRejected, Reason: autherr.ErrInvalidToken}, nil
		}
		return nil, fmt.Errorf("guard: load challenge: %w", err)
	}
	var rec challengeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrInvalidToken}, nil
	}

	p, err := g.creds.RetrieveByID(ctx, rec.PrincipalID)
	if err != nil {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrInvalidToken}, nil
	}
	if !p.Active || !p.ActiveIn(rec.TenantID) {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrAccountDisabled}, nil
	}

	outcome, err := g.verifyTwoFactorCode(ctx, p.ID, rec.TenantID, code)
	if err != nil || outcome != nil {
		return outcome, err
	}

	// Consumir el challenge antes de emitir la sesión (un solo uso).
	if err := g.sessions.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("guard: consume challenge: %w", err)
	}

	return g.establish(ctx, Credentials{
		Credentials: store.Credentials{TenantID: rec.TenantID, Email: p.Email},
		Remember:    rec.Remember,
	}, p.ID)
}

func (g *SessionGuard) User(ctx context.Context, bearer string) (*Identity, error) {
	raw, err := g.sessions.Get(ctx, sessionPrefix+bearer)
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, autherr.ErrInvalidToken
		}
		// Fail closed: sin acceso al session store no hay identidad.
		return nil, fmt.Errorf("guard: load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		logger.From(ctx).Error("corrupt session record", logger.Err(err))
		return nil, autherr.ErrInvalidToken
	}

	p, err := g.creds.RetrieveByID(ctx, rec.PrincipalID)
	if err != nil {
		return nil, autherr.ErrInvalidToken
	}
	if !p.Active || !p.ActiveIn(rec.TenantID) {
		return nil, autherr.ErrInvalidToken
	}

	// Sesión deslizante: cada hit extiende la vida útil. Best-effort: si
	// la renovación falla, la sesión sigue valiendo hasta su expiry
	// original.
	rec.ExpiresAt = time.Now().Add(g.sessionTTL)
	if renewed, err := json.Marshal(rec); err == nil {
		if err := g.sessions.Set(ctx, sessionPrefix+bearer, string(renewed), g.sessionTTL); err != nil {
			logger.From(ctx).Warn("session renew failed", logger.Err(err))
		}
	}

	return &Identity{
		Principal: p,
		TenantID:  rec.TenantID,
		TokenID:   bearer,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (g *SessionGuard) Check(ctx context.Context, bearer string) bool {
	_, err := g.User(ctx, bearer)
	return err == nil
}

// Logout borra la sesión. Delete sobre una clave inexistente no es error,
// así que repetir el logout es un no-op.
func (g *SessionGuard) Logout(ctx context.Context, bearer string) error {
	return g.sessions.Delete(ctx, sessionPrefix+bearer)
}
