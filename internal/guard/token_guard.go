package guard

import (
	"context"
	"errors"
	"fmt"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/token"
)

// TokenGuard autentica con JWT firmados: par access/refresh en el login y
// un token temporal de tipo dedicado para el paso de 2FA. Stateless salvo
// la lista de revocación.
type TokenGuard struct {
	authenticator
	tokens *token.Service
	creds  *store.CredentialStore
}

var _ Guard = (*TokenGuard)(nil)

func (g *TokenGuard) Name() string { return "token" }

func (g *TokenGuard) Attempt(ctx context.Context, creds Credentials) (*Outcome, error) {
	p, outcome, err := g.authenticate(ctx, creds)
	if err != nil || outcome != nil {
		return outcome, err
	}

	needs2FA, err := g.needsTwoFactor(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if needs2FA {
		// Token temporal: sólo sirve para CompleteTwoFactor, nunca como
		// bearer. No cuenta como login hasta validar el código.
		tmp, _, err := g.tokens.Issue(p.ID, creds.TenantID, token.TypeTwoFactor)
		if err != nil {
			return nil, fmt.Errorf("guard: issue two-factor token: %w", err)
		}
		return &Outcome{Status: StatusTwoFactorRequired, TwoFactorToken: tmp}, nil
	}

	pair, err := g.tokens.IssuePair(p.ID, creds.TenantID)
	if err != nil {
		return nil, fmt.Errorf("guard: issue pair: %w", err)
	}
	g.onSuccess(ctx, creds, p)
	return &Outcome{Status: StatusAuthenticated, Tokens: pair}, nil
}

func (g *TokenGuard) Login(ctx context.Context, p *core.Principal, tenantID string) (*Outcome, error) {
	if !p.Active || !p.ActiveIn(tenantID) {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrAccountDisabled}, nil
	}
	pair, err := g.tokens.IssuePair(p.ID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("guard: issue pair: %w", err)
	}
	return &Outcome{Status: StatusAuthenticated, Tokens: pair}, nil
}

func (g *TokenGuard) CompleteTwoFactor(ctx context.Context, twoFactorToken, code string) (*Outcome, error) {
	claims, err := g.tokens.Verify(ctx, twoFactorToken, token.TypeTwoFactor)
	if err != nil {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrInvalidToken}, nil
	}

	p, err := g.creds.RetrieveByID(ctx, claims.Subject)
	if err != nil {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrInvalidToken}, nil
	}
	// La cuenta pudo deshabilitarse entre el primer paso y éste.
	if !p.Active || !p.ActiveIn(claims.TenantID) {
		return &Outcome{Status: StatusRejected, Reason: autherr.ErrAccountDisabled}, nil
	}

	outcome, err := g.verifyTwoFactorCode(ctx, p.ID, claims.TenantID, code)
	if err != nil || outcome != nil {
		return outcome, err
	}

	// El token temporal es de un solo uso: revocado antes de emitir el
	// par, fallando cerrado si la revocación no se puede registrar.
	if err := g.tokens.RevokeJTI(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("guard: revoke two-factor token: %w", err)
	}

	pair, err := g.tokens.IssuePair(p.ID, claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("guard: issue pair: %w", err)
	}
	g.onSuccess(ctx, Credentials{Credentials: store.Credentials{TenantID: claims.TenantID, Email: p.Email}}, p)
	return &Outcome{Status: StatusAuthenticated, Tokens: pair}, nil
}

func (g *TokenGuard) User(ctx context.Context, bearer string) (*Identity, error) {
	claims, err := g.tokens.Verify(ctx, bearer, token.TypeAccess)
	if err != nil {
		return nil, err
	}
	p, err := g.creds.RetrieveByID(ctx, claims.Subject)
	if err != nil {
		// Principal borrado después de emitir el token: mismo genérico.
		logger.From(ctx).Debug("token subject not found", logger.PrincipalID(claims.Subject))
		return nil, autherr.ErrInvalidToken
	}
	if !p.Active || !p.ActiveIn(claims.TenantID) {
		return nil, autherr.ErrInvalidToken
	}
	return &Identity{
		Principal: p,
		TenantID:  claims.TenantID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (g *TokenGuard) Check(ctx context.Context, bearer string) bool {
	_, err := g.User(ctx, bearer)
	return err == nil
}

// Logout revoca el access token. Idempotente: re-revocar un jti ya
// revocado vuelve a escribir la misma clave, y un bearer que ya no
// parsea se trata como no-op.
func (g *TokenGuard) Logout(ctx context.Context, bearer string) error {
	err := g.tokens.Revoke(ctx, bearer)
	if err != nil && errors.Is(err, autherr.ErrInvalidToken) {
		return nil
	}
	return err
}
