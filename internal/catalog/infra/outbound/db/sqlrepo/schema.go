package sqlrepo

import (
	"database/sql"
	"fmt"

	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
)

// ------------------ Inicialización del Esquema ------------------

// InitSchema crea las tablas del catálogo y siembra los tipos por defecto.
// Los ids se guardan como texto en ambos motores.
func InitSchema(db *sql.DB, dialect sqlstore.Dialect) error {
	ts, num := "DATETIME", "REAL"
	if dialect.Name == "postgres" {
		ts, num = "TIMESTAMP WITH TIME ZONE", "DOUBLE PRECISION"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalog_brands (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS catalog_types (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS catalog_items (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL,
			price %[2]s NOT NULL,
			picture_uri TEXT NOT NULL,
			brand_id TEXT NOT NULL,
			type_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts, num),
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_brand ON catalog_items (brand_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init catalog schema: %w", err)
		}
	}

	for _, t := range catalogDomain.DefaultTypes() {
		if _, err := db.Exec(dialect.Rebind(`INSERT INTO catalog_types (id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`), t.ID.String(), t.Name); err != nil {
			return fmt.Errorf("seed catalog types: %w", err)
		}
	}
	return nil
}
