// Package migrations embeds the orders/journal schema so the service binary
// carries its own migrations without a separate deploy artifact.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
