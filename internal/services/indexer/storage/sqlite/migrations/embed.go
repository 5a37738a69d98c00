// Package migrations embeds the SQL schema history for the read-model store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
