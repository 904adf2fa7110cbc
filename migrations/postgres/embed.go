// Package migrations embebe las migraciones SQL del esquema.
package migrations

import "embed"

// FS contiene los pares *_up.sql / *_down.sql, aplicados en orden
// lexicográfico por el subcomando migrate.
//
//go:embed *.sql
var FS embed.FS
