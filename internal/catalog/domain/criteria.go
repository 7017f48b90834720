package domain

import (
	"github.com/google/uuid"

	// Importamos el "sistema" de Criterios genérico y le damos un alias
	shared "github.com/davicafu/hexashop/internal/shared/domain"
)

// --- Criterios Específicos para el Catálogo ---

// BrandCriteria busca productos de una marca.
type BrandCriteria struct {
	ID uuid.UUID
}

func (c BrandCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "brand_id", Op: shared.OpEq, Value: c.ID.String()}}
}

// -----------------------------------------------------------

type TypeCriteria struct {
	ID uuid.UUID
}

func (c TypeCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "type_id", Op: shared.OpEq, Value: c.ID.String()}}
}

// -----------------------------------------------------------

// NameLikeCriteria busca productos cuyo nombre empiece por un texto.
type NameLikeCriteria struct {
	Name string
}

func (c NameLikeCriteria) ToConditions() []shared.Criterion {
	return []shared.Criterion{{Field: "name", Op: shared.OpLike, Value: c.Name + "%"}}
}

// -----------------------------------------------------------

// PriceRangeCriteria acota el precio; los extremos nil no filtran.
type PriceRangeCriteria struct {
	Min *float64
	Max *float64
}

func (c PriceRangeCriteria) ToConditions() []shared.Criterion {
	var conds []shared.Criterion
	if c.Min != nil {
		conds = append(conds, shared.Criterion{Field: "price", Op: shared.OpGte, Value: *c.Min})
	}
	if c.Max != nil {
		conds = append(conds, shared.Criterion{Field: "price", Op: shared.OpLte, Value: *c.Max})
	}
	return conds
}
