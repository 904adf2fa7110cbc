// Package validation valida los identificadores que viajan en asignaciones
// RBAC. Un nombre malformado nunca llega al repositorio.
package validation

import "regexp"

// Reglas para nombres de permiso:
// - Minúsculas solamente.
// - Empieza y termina en [a-z0-9].
// - En el medio se admite [a-z0-9:_.-].
// - Largo 1..64.
// - Sin espacios ni punto y coma.
//
// Válidos: sales.view, inventory:adjust, a, reports.export_csv
// Inválidos: ;hack, Sales.View, "con espacio", .leader, trailer., "", 65+ chars.
var permissionNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// Los roles usan el mismo alfabeto pero sin ":" ni ".", que quedan
// reservados para namespacing de permisos.
var roleNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_-]{0,62}[a-z0-9])?$`)

// ValidPermissionName reporta si name cumple el patrón de permisos.
func ValidPermissionName(name string) bool {
	return permissionNameRe.MatchString(name)
}

// ValidRoleName reporta si name cumple el patrón de roles.
func ValidRoleName(name string) bool {
	return roleNameRe.MatchString(name)
}
