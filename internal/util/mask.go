// Package util tiene helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail enmascara un email antes de que entre al stream de auditoría:
// los eventos login_failed viajan a un SIEM externo y no deben cargar el
// identificador en claro. Conserva la primera letra del usuario y del
// dominio, suficiente para correlacionar intentos sin exponer la cuenta.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.IndexByte(s, '@')
	if at <= 0 {
		// Sin "@" no es un email: se enmascara como string opaco.
		switch {
		case s == "":
			return ""
		case len(s) <= 3:
			return "***"
		default:
			return s[:1] + "…" + s[len(s)-1:]
		}
	}

	user := s[:at]
	if len(user) > 1 {
		user = user[:1] + "…"
	}
	domainParts := strings.Split(s[at+1:], ".")
	if len(domainParts) > 0 && len(domainParts[0]) > 1 {
		domainParts[0] = domainParts[0][:1] + "…"
	}
	return user + "@" + strings.Join(domainParts, ".")
}
