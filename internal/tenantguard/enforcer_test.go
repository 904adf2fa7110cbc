package tenantguard

import (
	"context"
	"errors"
	"testing"

	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/store/core"
	"github.com/nexaerp/authd/internal/store/memory"
)

func newEnforcer(t *testing.T) (*Enforcer, *memory.Store) {
	t.Helper()
	st := memory.New()
	st.AddTenant(core.Tenant{ID: "t1", Code: "acme", Active: true})
	st.AddTenant(core.Tenant{ID: "t2", Code: "globex", Active: true})
	st.AddResource("customers", "c-100", "t1")
	st.AddResource("customers", "c-200", "t2")
	st.AddResource("invoices", "inv-7", "t2")
	return NewEnforcer(st.Ownership(), nil), st
}

func TestValidateHint(t *testing.T) {
	t.Parallel()
	e, _ := newEnforcer(t)
	ctx := context.Background()

	if err := e.ValidateHint(ctx, "t1", ""); err != nil {
		t.Fatalf("empty hint: %v", err)
	}
	if err := e.ValidateHint(ctx, "t1", "t1"); err != nil {
		t.Fatalf("matching hint: %v", err)
	}
	if err := e.ValidateHint(ctx, "t1", "t2"); !errors.Is(err, autherr.ErrTenantIsolation) {
		t.Fatalf("mismatched hint must be a violation, got %v", err)
	}
}

func TestCheckOwnership(t *testing.T) {
	t.Parallel()
	e, _ := newEnforcer(t)
	ctx := context.Background()

	if err := e.CheckOwnership(ctx, "customers", "c-100", "t1"); err != nil {
		t.Fatalf("own resource: %v", err)
	}
	// Recurso de otro tenant y recurso inexistente: misma respuesta.
	foreign := e.CheckOwnership(ctx, "customers", "c-200", "t1")
	missing := e.CheckOwnership(ctx, "customers", "no-such", "t1")
	if !errors.Is(foreign, autherr.ErrTenantIsolation) {
		t.Fatalf("foreign resource: %v", foreign)
	}
	if !errors.Is(missing, autherr.ErrTenantIsolation) {
		t.Fatalf("missing resource: %v", missing)
	}
	if foreign.Error() != missing.Error() {
		t.Fatalf("foreign and missing must be indistinguishable: %q vs %q", foreign, missing)
	}
	// Tipo de recurso desconocido: denegado, no panic.
	if err := e.CheckOwnership(ctx, "ledgers", "x", "t1"); !errors.Is(err, autherr.ErrTenantIsolation) {
		t.Fatalf("unknown resource type: %v", err)
	}
}

func TestScanPayload(t *testing.T) {
	t.Parallel()
	e, _ := newEnforcer(t)
	ctx := context.Background()

	type invoice struct {
		ID       string `json:"id"`
		TenantID string `json:"tenant_id"`
	}
	type customer struct {
		ID        string    `json:"id"`
		CompanyID string    `json:"company_id"`
		Invoices  []invoice `json:"invoices"`
	}

	clean := customer{
		ID: "c-100", CompanyID: "t1",
		Invoices: []invoice{{ID: "inv-1", TenantID: "t1"}},
	}
	if err := e.ScanPayload(ctx, "t1", clean); err != nil {
		t.Fatalf("clean payload: %v", err)
	}

	// Registro ajeno colado en una lista anidada.
	dirty := customer{
		ID: "c-100", CompanyID: "t1",
		Invoices: []invoice{{ID: "inv-1", TenantID: "t1"}, {ID: "inv-7", TenantID: "t2"}},
	}
	if err := e.ScanPayload(ctx, "t1", dirty); !errors.Is(err, autherr.ErrTenantIsolation) {
		t.Fatalf("nested foreign tenant must fail, got %v", err)
	}

	// También sobre payloads genéricos (maps de serialización).
	raw := map[string]any{
		"id": "c-100",
		"meta": map[string]any{
			"company_id": "t2",
		},
	}
	if err := e.ScanPayload(ctx, "t1", raw); !errors.Is(err, autherr.ErrTenantIsolation) {
		t.Fatalf("map payload with foreign tenant must fail, got %v", err)
	}

	if err := e.ScanPayload(ctx, "t1", nil); err != nil {
		t.Fatalf("nil payload: %v", err)
	}
	if err := e.ScanPayload(ctx, "t1", &clean); err != nil {
		t.Fatalf("pointer payload: %v", err)
	}
}
