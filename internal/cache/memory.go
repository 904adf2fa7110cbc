package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre patrickmn/go-cache.
// Útil para desarrollo y testing; single-process only.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	mu     sync.Mutex // serializa Incr/SetCounter para que sean atómicos
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) key(k string) string {
	if m.prefix == "" {
		return k
	}
	return m.prefix + ":" + k
}

func (m *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.key(key))
	if !ok {
		return "", ErrNotFound
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	default:
		return fmt.Sprint(t), nil
	}
}

func (m *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(m.key(key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(ctx context.Context, key string) error {
	m.c.Delete(m.key(key))
	return nil
}

func (m *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.c.Get(m.key(key))
	return ok, nil
}

func (m *memoryClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(key)
	if _, ok := m.c.Get(k); !ok {
		// Primer hit: abre la ventana
		if ttl <= 0 {
			ttl = gocache.NoExpiration
		}
		m.c.Set(k, int64(1), ttl)
		return 1, nil
	}
	return m.c.IncrementInt64(k, 1)
}

func (m *memoryClient) SetCounter(ctx context.Context, key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := m.key(key)
	_, exp, ok := m.c.GetWithExpiration(k)
	if !ok {
		return nil // ventana ya expiró, nada que ajustar
	}
	ttl := gocache.NoExpiration
	if !exp.IsZero() {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return nil
		}
	}
	m.c.Set(k, value, ttl)
	return nil
}

func (m *memoryClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	_, exp, ok := m.c.GetWithExpiration(m.key(key))
	if !ok || exp.IsZero() {
		return 0, nil
	}
	ttl := time.Until(exp)
	if ttl < 0 {
		ttl = 0
	}
	return ttl, nil
}

func (m *memoryClient) Ping(ctx context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
