// Package app arma el grafo de dependencias a partir de la config.
// Construcción una sola vez en el arranque: ningún componente se resuelve
// dinámicamente por request.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/config"
	"github.com/nexaerp/authd/internal/guard"
	authctrl "github.com/nexaerp/authd/internal/http/controllers/auth"
	customerctrl "github.com/nexaerp/authd/internal/http/controllers/customers"
	healthctrl "github.com/nexaerp/authd/internal/http/controllers/health"
	twofactorctrl "github.com/nexaerp/authd/internal/http/controllers/twofactor"
	mw "github.com/nexaerp/authd/internal/http/middlewares"
	"github.com/nexaerp/authd/internal/http/router"
	"github.com/nexaerp/authd/internal/rate"
	"github.com/nexaerp/authd/internal/rbac"
	"github.com/nexaerp/authd/internal/security/secretbox"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/store/memory"
	"github.com/nexaerp/authd/internal/store/pg"
	"github.com/nexaerp/authd/internal/tenantguard"
	"github.com/nexaerp/authd/internal/token"
	"github.com/nexaerp/authd/internal/twofactor"
)

// App es el servicio armado y listo para servir.
type App struct {
	Handler http.Handler
	Store   core.Store
	Cache   cache.Client
	Guard   guard.Guard
}

// New construye todo el grafo. Cualquier error acá es fatal: mejor morir
// en el arranque que autenticar con una pieza mal cableada.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cc, err := cache.New(cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	tokens, err := token.New(token.Config{
		Issuer:       cfg.JWT.Issuer,
		Key:          key,
		Algorithm:    cfg.JWT.Algorithm,
		AccessTTL:    config.Dur(cfg.JWT.AccessTTL, time.Hour),
		RefreshTTL:   config.Dur(cfg.JWT.RefreshTTL, 7*24*time.Hour),
		TwoFactorTTL: config.Dur(cfg.JWT.TwoFactorTTL, 5*time.Minute),
		Leeway:       config.Dur(cfg.JWT.Leeway, 30*time.Second),
	}, cc)
	if err != nil {
		return nil, err
	}

	box, err := secretbox.New(cfg.Security.SecretBoxMasterKey)
	if err != nil {
		return nil, err
	}

	sink := audit.NewZapSink()
	tf := twofactor.NewService(st.TwoFactor(), box, sink, cfg.TwoFactor.Issuer)

	limiter := rate.NewLimiter(cc, sink, map[string]rate.Limit{
		rate.ScopeLoginEmail: {
			Max:            int64(cfg.Rate.Login.Limit),
			Window:         config.Dur(cfg.Rate.Login.Window, 15*time.Minute),
			AlertThreshold: int64(cfg.Rate.Login.AlertThreshold),
		},
		rate.ScopeLoginIP: {
			Max:            int64(cfg.Rate.LoginIP.Limit),
			Window:         config.Dur(cfg.Rate.LoginIP.Window, 15*time.Minute),
			AlertThreshold: int64(cfg.Rate.LoginIP.AlertThreshold),
		},
		rate.ScopeTwoFactor: {
			Max:            int64(cfg.Rate.TwoFactor.Limit),
			Window:         config.Dur(cfg.Rate.TwoFactor.Window, 5*time.Minute),
			AlertThreshold: int64(cfg.Rate.TwoFactor.AlertThreshold),
		},
	}, rate.Limit{})

	creds := store.NewCredentialStore(st.Principals())
	g, err := guard.New(guard.Config{
		Driver:     cfg.Guard.Driver,
		SessionTTL: config.Dur(cfg.Guard.SessionTTL, 12*time.Hour),
	}, guard.Deps{
		Credentials: creds,
		Tokens:      tokens,
		TwoFactor:   tf,
		Limiter:     limiter,
		Cache:       cc,
		Sink:        sink,
	})
	if err != nil {
		return nil, err
	}

	enforcer := tenantguard.NewEnforcer(st.Ownership(), sink)
	resolver := rbac.NewResolver(st.RBAC())

	handler := router.New(router.Deps{
		Auth:        authctrl.NewControllers(g, tokens, resolver),
		TwoFactor:   twofactorctrl.NewController(tf),
		Customers:   customerctrl.NewController(enforcer),
		Health:      healthctrl.NewController(st, cc),
		RequireAuth: mw.RequireAuth(g, enforcer),
		RequirePermission: func(p string) mw.Middleware {
			return mw.RequirePermission(resolver, p)
		},
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	return &App{Handler: handler, Store: st, Cache: cc, Guard: g}, nil
}

// Close libera conexiones. Seguro de llamar una sola vez al apagar.
func (a *App) Close() {
	a.Store.Close()
	_ = a.Cache.Close()
}

func openStore(ctx context.Context, cfg *config.Config) (core.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return pg.New(ctx, cfg.Storage.DSN)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}
}
