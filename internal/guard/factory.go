package guard

import (
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/cache"
	"github.com/nexaerp/authd/internal/rate"
	"github.com/nexaerp/authd/internal/store"
	"github.com/nexaerp/authd/internal/token"
	"github.com/nexaerp/authd/internal/twofactor"
)

// Drivers soportados. Set cerrado: agregar una estrategia es agregar un
// case acá, no registrarla en runtime.
const (
	DriverToken   = "token"
	DriverSession = "session"
)

// Config del guard activo del deployment.
type Config struct {
	// Driver: "token" (default) o "session".
	Driver string
	// SessionTTL aplica sólo al driver session.
	SessionTTL time.Duration
}

// Deps agrupa los colaboradores. Todos obligatorios salvo Sink.
type Deps struct {
	Credentials *store.CredentialStore
	Tokens      *token.Service
	TwoFactor   *twofactor.Service
	Limiter     *rate.Limiter
	Cache       cache.Client
	Sink        audit.Sink
}

// New arma el guard del driver configurado. La elección ocurre una sola
// vez al bootstrap; los handlers reciben la interfaz y no saben cuál es.
func New(cfg Config, deps Deps) (Guard, error) {
	if deps.Credentials == nil || deps.Tokens == nil || deps.TwoFactor == nil || deps.Limiter == nil {
		return nil, &autherr.ConfigError{Field: "guard", Reason: "missing dependencies"}
	}
	sink := deps.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	base := authenticator{
		creds:     deps.Credentials,
		twofactor: deps.TwoFactor,
		limiter:   deps.Limiter,
		sink:      sink,
	}

	switch cfg.Driver {
	case DriverToken, "":
		return &TokenGuard{
			authenticator: base,
			tokens:        deps.Tokens,
			creds:         deps.Credentials,
		}, nil
	case DriverSession:
		if deps.Cache == nil {
			return nil, &autherr.ConfigError{Field: "guard.driver", Reason: "session driver requires a cache client"}
		}
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = defaultSessionTTL
		}
		return &SessionGuard{
			authenticator: base,
			sessions:      deps.Cache,
			creds:         deps.Credentials,
			sessionTTL:    ttl,
		}, nil
	default:
		return nil, &autherr.ConfigError{Field: "guard.driver", Reason: "unknown driver " + cfg.Driver}
	}
}
