// Package token emite y verifica los tokens firmados del subsistema:
// access (corto), refresh (largo) y el token temporal de 2FA pendiente.
// Mantiene además el índice de revocación por jti en el store TTL.
package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/observability/logger"
)

// Tipos de token. El claim "use" distingue access/refresh/twofactor;
// un token de un tipo nunca se acepta donde se espera otro.
const (
	TypeAccess    = "access"
	TypeRefresh   = "refresh"
	TypeTwoFactor = "twofactor"
)

// Claims del payload. TenantID viaja en "tid" y es la única fuente de
// verdad para el tenant context del request.
type Claims struct {
	TenantID  string `json:"tid"`
	TokenType string `json:"use"`
	jwtv5.RegisteredClaims
}

// Pair es el resultado de un login o refresh exitoso.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// allowedMethods es la allow-list cerrada de algoritmos HMAC. El header
// "alg" de un token entrante jamás se usa para elegir el método: sólo se
// acepta si está acá.
var allowedMethods = map[string]jwtv5.SigningMethod{
	"HS256": jwtv5.SigningMethodHS256,
	"HS384": jwtv5.SigningMethodHS384,
	"HS512": jwtv5.SigningMethodHS512,
}

const minKeyLen = 32

// Config del servicio de tokens.
type Config struct {
	Issuer       string
	Key          []byte
	Algorithm    string // HS256 | HS384 | HS512
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	TwoFactorTTL time.Duration
	Leeway       time.Duration
}

type Service struct {
	cfg    Config
	method jwtv5.SigningMethod
	algs   []string
	revoke cache.Client
}

// New valida la configuración y construye el servicio. Una clave corta o
// un algoritmo fuera de la allow-list son fatales en el arranque.
func New(cfg Config, revocations cache.Client) (*Service, error) {
	if len(cfg.Key) < minKeyLen {
		return nil, &autherr.ConfigError{Field: "jwt.key", Reason: fmt.Sprintf("must be at least %d bytes, got %d", minKeyLen, len(cfg.Key))}
	}
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = "HS256"
	}
	method, ok := allowedMethods[alg]
	if !ok {
		return nil, &autherr.ConfigError{Field: "jwt.algorithm", Reason: fmt.Sprintf("%q not in allow-list", cfg.Algorithm)}
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.TwoFactorTTL <= 0 {
		cfg.TwoFactorTTL = 5 * time.Minute
	}
	if cfg.Leeway <= 0 {
		cfg.Leeway = 30 * time.Second
	}
	algs := make([]string, 0, len(allowedMethods))
	for name := range allowedMethods {
		algs = append(algs, name)
	}
	return &Service{cfg: cfg, method: method, algs: algs, revoke: revocations}, nil
}

func (s *Service) ttlFor(typ string) time.Duration {
	switch typ {
	case TypeRefresh:
		return s.cfg.RefreshTTL
	case TypeTwoFactor:
		return s.cfg.TwoFactorTTL
	default:
		return s.cfg.AccessTTL
	}
}

// Issue firma un token del tipo dado con jti fresco.
func (s *Service) Issue(subject, tenantID, typ string) (string, *Claims, error) {
	now := time.Now().UTC()
	claims := &Claims{
		TenantID:  tenantID,
		TokenType: typ,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.ttlFor(typ))),
		},
	}
	tk := jwtv5.NewWithClaims(s.method, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(s.cfg.Key)
	if err != nil {
		return "", nil, fmt.Errorf("token: sign: %w", err)
	}
	return signed, claims, nil
}

// IssuePair emite un par access+refresh para el principal.
func (s *Service) IssuePair(subject, tenantID string) (*Pair, error) {
	access, ac, err := s.Issue(subject, tenantID, TypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, rc, err := s.Issue(subject, tenantID, TypeRefresh)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
	}, nil
}

// Verify valida estructura, algoritmo (allow-list), firma, ventana
// [nbf, exp), issuer, tipo esperado y revocación. Cualquier falla colapsa
// a autherr.ErrInvalidToken: la razón concreta se loguea internamente y
// nunca se devuelve al caller (evita oracles).
func (s *Service) Verify(ctx context.Context, raw, expectedType string) (*Claims, error) {
	log := logger.From(ctx).With(logger.Component("token"), logger.Op("Verify"))

	// Un JWT compacto son exactamente tres segmentos
	if strings.Count(raw, ".") != 2 {
		log.Debug("malformed token structure")
		return nil, autherr.ErrInvalidToken
	}

	keyfunc := func(t *jwtv5.Token) (any, error) {
		// WithValidMethods ya filtró el alg, pero nunca confiamos en el
		// header para nada más que el lookup
		if _, ok := allowedMethods[t.Method.Alg()]; !ok {
			return nil, errors.New("algorithm not allowed")
		}
		return s.cfg.Key, nil
	}

	tk, err := jwtv5.ParseWithClaims(raw, &Claims{}, keyfunc,
		jwtv5.WithValidMethods(s.algs),
		jwtv5.WithIssuer(s.cfg.Issuer),
		jwtv5.WithIssuedAt(),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithLeeway(s.cfg.Leeway),
	)
	if err != nil || !tk.Valid {
		log.Debug("token rejected", logger.Err(err))
		return nil, autherr.ErrInvalidToken
	}

	claims, ok := tk.Claims.(*Claims)
	if !ok || claims.ID == "" || claims.Subject == "" {
		log.Debug("token claims incomplete")
		return nil, autherr.ErrInvalidToken
	}
	if expectedType != "" && claims.TokenType != expectedType {
		log.Debug("token type mismatch", logger.TokenType(claims.TokenType))
		return nil, autherr.ErrInvalidToken
	}

	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Si el índice de revocación no responde, fail closed
		log.Warn("revocation lookup failed", logger.Err(err))
		return nil, autherr.ErrInvalidToken
	}
	if revoked {
		log.Debug("token revoked", logger.JTI(claims.ID))
		return nil, autherr.ErrInvalidToken
	}
	return claims, nil
}
