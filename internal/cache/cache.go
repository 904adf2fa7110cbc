// Package cache provee el store TTL compartido entre workers.
//
// Todo el estado cross-request del subsistema vive acá: índice de
// revocación de tokens (jti), contadores de rate limiting, sesiones
// opacas y challenges de 2FA pendientes.
//
// Backends:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Los incrementos son atómicos en ambos backends: dos requests paralelos
// del mismo identity nunca observan el mismo contador.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones del store TTL.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe o expiró.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key. No falla si no existe.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe y no expiró.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr incrementa atómicamente el contador de key y retorna el valor
	// resultante. En el primer hit fija el TTL de la ventana; los
	// siguientes lo conservan (el TTL lo gobierna el store, no el caller).
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// SetCounter fija el contador a un valor conservando el TTL restante.
	// Usado para el decay parcial de contadores por origen.
	SetCounter(ctx context.Context, key string, value int64) error

	// TTL retorna el tiempo de vida restante de una key.
	// Retorna 0 si la key no existe.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // prefijo para todas las keys
}

// Errores de cache.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
