// Package tenantguard hace cumplir el aislamiento entre tenants. El
// tenant context se fija una sola vez por request desde los claims
// verificados y nunca desde input del cliente; todo lo que no se pueda
// probar dentro del tenant se trata como violación (fail closed).
package tenantguard

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/nexaerp/authd/internal/audit"
	"github.com/nexaerp/authd/internal/autherr"
	"github.com/nexaerp/authd/internal/metrics"
	"github.com/nexaerp/authd/internal/observability/logger"
	"github.com/nexaerp/authd/internal/store/core"
)

// tenantKeys son los nombres de campo que denuncian el tenant dueño de
// un registro en los payloads del ERP.
var tenantKeys = map[string]bool{
	"tenant_id":  true,
	"company_id": true,
}

// maxScanDepth acota el walk recursivo sobre payloads anidados.
const maxScanDepth = 32

type Enforcer struct {
	ownership core.OwnershipChecker
	sink      audit.Sink
}

func NewEnforcer(ownership core.OwnershipChecker, sink audit.Sink) *Enforcer {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &Enforcer{ownership: ownership, sink: sink}
}

// violation registra la violación (auditoría + métrica) y devuelve el
// error raíz envuelto. El detalle queda en logs, nunca en la respuesta.
func (e *Enforcer) violation(ctx context.Context, tenantID, detail string) error {
	metrics.IsolationViolations.Inc()
	e.sink.LogEvent(ctx, audit.EventIsolationViolation, map[string]any{
		"tenant_id": tenantID,
		"detail":    detail,
	})
	logger.From(ctx).Warn("tenant isolation violation",
		logger.TenantID(tenantID), logger.String("detail", detail))
	return fmt.Errorf("%w: %s", autherr.ErrTenantIsolation, detail)
}

// ValidateHint compara el hint opcional del cliente (header X-Tenant-ID)
// contra el tenant fijado por los claims. El hint jamás selecciona
// tenant: sólo puede coincidir o tumbar el request antes del handler.
func (e *Enforcer) ValidateHint(ctx context.Context, pinned, hint string) error {
	if hint == "" || hint == pinned {
		return nil
	}
	return e.violation(ctx, pinned, "tenant hint mismatch")
}

// CheckOwnership verifica que el recurso pertenezca al tenant fijado.
// Recurso inexistente y recurso ajeno son indistinguibles para el caller.
func (e *Enforcer) CheckOwnership(ctx context.Context, resource, resourceID, pinned string) error {
	owned, err := e.ownership.BelongsToTenant(ctx, resource, resourceID, pinned)
	if err != nil {
		if core.IsNotFound(err) {
			return e.violation(ctx, pinned, "resource not in tenant: "+resource)
		}
		// No se pudo probar la pertenencia: se niega.
		logger.From(ctx).Error("ownership check failed", logger.Err(err))
		return e.violation(ctx, pinned, "ownership check unavailable")
	}
	if !owned {
		return e.violation(ctx, pinned, "resource not in tenant: "+resource)
	}
	return nil
}

// ScanPayload recorre recursivamente el payload a punto de serializarse
// y falla si algún campo tenant_id/company_id difiere del tenant fijado.
// Es la red de contención contra queries que olvidaron el filtro.
func (e *Enforcer) ScanPayload(ctx context.Context, pinned string, payload any) error {
	if payload == nil {
		return nil
	}
	if leak := scanValue(reflect.ValueOf(payload), pinned, 0); leak != "" {
		return e.violation(ctx, pinned, "foreign tenant value in response field "+leak)
	}
	return nil
}

// scanValue devuelve el nombre del campo ofensor, o "" si el valor está
// limpio.
func scanValue(v reflect.Value, pinned string, depth int) string {
	if depth > maxScanDepth || !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return scanValue(v.Elem(), pinned, depth+1)
	case reflect.Map:
		for _, k := range v.MapKeys() {
			name := ""
			if k.Kind() == reflect.String {
				name = k.String()
			}
			if tenantKeys[strings.ToLower(name)] && !valueMatches(v.MapIndex(k), pinned) {
				return name
			}
			if leak := scanValue(v.MapIndex(k), pinned, depth+1); leak != "" {
				return leak
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if leak := scanValue(v.Index(i), pinned, depth+1); leak != "" {
				return leak
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := jsonName(f)
			if tenantKeys[name] && !valueMatches(v.Field(i), pinned) {
				return name
			}
			if leak := scanValue(v.Field(i), pinned, depth+1); leak != "" {
				return leak
			}
		}
	}
	return ""
}

// jsonName resuelve el nombre serializado del campo, porque el payload
// se compara tal como lo vería el cliente.
func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return strings.ToLower(f.Name)
	}
	if i := strings.Index(tag, ","); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	return strings.ToLower(tag)
}

// valueMatches compara un valor de campo tenant contra el tenant fijado.
// Un tipo raro en un campo tenant cuenta como mismatch.
func valueMatches(v reflect.Value, pinned string) bool {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			// tenant desconocido en el registro: no se puede probar
			return false
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.String {
		return v.String() == pinned
	}
	return fmt.Sprint(v.Interface()) == pinned
}
