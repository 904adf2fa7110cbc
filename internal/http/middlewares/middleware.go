package middlewares

import "net/http"

// Middleware es un decorador de http.Handler. Compatible con chi.Use.
type Middleware func(http.Handler) http.Handler
