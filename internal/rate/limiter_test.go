package rate

import (
	"context"
	"testing"
	"time"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/cache"
)

func testLimiter(max, alert int64) *Limiter {
	return NewLimiter(cache.NewMemory("t"), audit.NopSink{}, map[string]Limit{
		ScopeLoginEmail: {Max: max, Window: 15 * time.Minute, AlertThreshold: alert},
	}, Limit{Max: 100, Window: time.Minute})
}

func TestAllow_BlocksAfterMaxFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLimiter(5, 20)

	for i := 0; i < 5; i++ {
		res, err := l.Allow(ctx, ScopeLoginEmail, "admin@x.com")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d unexpectedly blocked", i+1)
		}
		if err := l.RecordFailure(ctx, ScopeLoginEmail, "admin@x.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	// Sexto intento: bloqueado aunque el password sea correcto
	res, err := l.Allow(ctx, ScopeLoginEmail, "admin@x.com")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("sixth attempt allowed after 5 failures")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("RetryAfter not set: %v", res.RetryAfter)
	}
}

func TestAllow_IdentitiesAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLimiter(2, 0)

	for i := 0; i < 2; i++ {
		_ = l.RecordFailure(ctx, ScopeLoginEmail, "a@x.com")
	}
	if res, _ := l.Allow(ctx, ScopeLoginEmail, "a@x.com"); res.Allowed {
		t.Fatalf("a@x.com should be blocked")
	}
	if res, _ := l.Allow(ctx, ScopeLoginEmail, "b@x.com"); !res.Allowed {
		t.Fatalf("b@x.com should not be affected")
	}
}

func TestReset_ClearsCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLimiter(2, 0)

	_ = l.RecordFailure(ctx, ScopeLoginEmail, "a@x.com")
	_ = l.RecordFailure(ctx, ScopeLoginEmail, "a@x.com")
	if res, _ := l.Allow(ctx, ScopeLoginEmail, "a@x.com"); res.Allowed {
		t.Fatalf("expected blocked before reset")
	}
	if err := l.Reset(ctx, ScopeLoginEmail, "a@x.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if res, _ := l.Allow(ctx, ScopeLoginEmail, "a@x.com"); !res.Allowed {
		t.Fatalf("expected allowed after reset")
	}
}

func TestDecay_HalvesButNeverClears(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := testLimiter(100, 0)

	for i := 0; i < 8; i++ {
		_ = l.RecordFailure(ctx, ScopeLoginEmail, "10.0.0.1")
	}
	if err := l.Decay(ctx, ScopeLoginEmail, "10.0.0.1"); err != nil {
		t.Fatalf("Decay: %v", err)
	}
	res, _ := l.Allow(ctx, ScopeLoginEmail, "10.0.0.1")
	if got := 100 - res.Remaining; got != 4 {
		t.Fatalf("after decay want 4 hits, got %d", got)
	}

	// Decaer repetidamente nunca borra el contador del todo
	for i := 0; i < 10; i++ {
		_ = l.Decay(ctx, ScopeLoginEmail, "10.0.0.1")
	}
	res, _ = l.Allow(ctx, ScopeLoginEmail, "10.0.0.1")
	if got := 100 - res.Remaining; got != 1 {
		t.Fatalf("decay floor should be 1, got %d", got)
	}
}

type captureSink struct {
	events []string
}

func (c *captureSink) LogEvent(_ context.Context, name string, _ map[string]any) {
	c.events = append(c.events, name)
}

func TestRecordFailure_AlertThresholdFiresOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sink := &captureSink{}
	l := NewLimiter(cache.NewMemory("t"), sink, map[string]Limit{
		ScopeLoginIP: {Max: 5, Window: time.Minute, AlertThreshold: 8},
	}, Limit{Max: 100, Window: time.Minute})

	for i := 0; i < 10; i++ {
		if err := l.RecordFailure(ctx, ScopeLoginIP, "10.9.9.9"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	var alerts int
	for _, e := range sink.events {
		if e == audit.EventLockoutAlert {
			alerts++
		}
	}
	if alerts != 1 {
		t.Fatalf("want exactly 1 lockout alert, got %d", alerts)
	}
}
