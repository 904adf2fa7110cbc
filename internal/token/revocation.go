package token

import (
	"context"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/observability/logger"
)

const revokePrefix = "revoked:jti:"

// Revoke extrae jti+exp sin re-verificar la firma (path de logout, el
// caller ya está autenticado) y guarda la entrada con TTL = vida restante
// del token. El TTL lo gobierna el store, no el wall-clock entre nodos.
func (s *Service) Revoke(ctx context.Context, raw string) error {
	if strings.Count(raw, ".") != 2 {
		return autherr.ErrInvalidToken
	}
	var claims Claims
	if _, _, err := jwtv5.NewParser().ParseUnverified(raw, &claims); err != nil {
		return autherr.ErrInvalidToken
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return autherr.ErrInvalidToken
	}
	return s.RevokeJTI(ctx, claims.ID, claims.ExpiresAt.Time)
}

// RevokeJTI marca un jti como revocado hasta exp.
func (s *Service) RevokeJTI(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp) + s.cfg.Leeway
	if ttl <= 0 {
		// Ya expirado: no hay nada que revocar
		return nil
	}
	if err := s.revoke.Set(ctx, revokePrefix+jti, "1", ttl); err != nil {
		return err
	}
	logger.From(ctx).Debug("token revoked", logger.JTI(jti))
	return nil
}

// IsRevoked es un point lookup sobre el índice de revocación.
func (s *Service) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return s.revoke.Exists(ctx, revokePrefix+jti)
}

// Refresh rota un refresh token: lo verifica, lo revoca y recién entonces
// emite el par nuevo. Un refresh robado deja de servir después del primer
// uso legítimo; si la revocación falla, no se emite nada (fail closed).
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*Pair, error) {
	claims, err := s.Verify(ctx, rawRefresh, TypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.RevokeJTI(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		logger.From(ctx).Error("refresh rotation: revoke failed", logger.Err(err))
		return nil, autherr.ErrInvalidToken
	}
	return s.IssuePair(claims.Subject, claims.TenantID)
}
