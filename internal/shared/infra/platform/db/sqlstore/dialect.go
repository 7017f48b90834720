// Package sqlstore implementa la Unit of Work, el outbox, la idempotencia y los
// dead letters sobre database/sql. Las consultas se escriben con '?' y el Dialect
// las adapta al motor (SQLite o Postgres).
package sqlstore

import (
	"fmt"
	"strings"
)

type Dialect struct {
	Name string

	// Numbered indica placeholders $1, $2... (Postgres) en lugar de '?'.
	Numbered bool

	// LockClause se añade a la selección de filas a reclamar (FOR UPDATE SKIP LOCKED en Postgres).
	LockClause string

	// IsUniqueViolation reconoce el error de clave duplicada del driver.
	IsUniqueViolation func(err error) bool
}

// Rebind traduce los '?' de query al estilo del dialecto.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUnique indica si err es una violación de unicidad según el driver.
func (d Dialect) IsUnique(err error) bool {
	return err != nil && d.IsUniqueViolation != nil && d.IsUniqueViolation(err)
}
