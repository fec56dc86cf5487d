// Package migrations embeds the SQL schema files into the binary so the
// run-history database can be created without files on disk.
package migrations

import (
	"embed"

	"github.com/ishandutta2007/taskt/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
