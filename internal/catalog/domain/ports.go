package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
)

// ---------- Interfaces (Ports) ----------

// CatalogRepository lee directamente y escribe a través de una Unit of Work:
// los métodos de escritura solo preparan la operación y rastrean el agregado.
type CatalogRepository interface {
	// Debe devolver ErrCatalogItemNotFound si no existe.
	GetItem(ctx context.Context, id uuid.UUID) (*CatalogItem, error)

	// ListItems devuelve la página pedida y el total de coincidencias.
	ListItems(ctx context.Context, criteria sharedDomain.Criteria, page sharedDomain.OffsetPagination, sort sharedDomain.Sort) ([]*CatalogItem, int, error)

	ItemNameExists(ctx context.Context, name string) (bool, error)

	GetBrand(ctx context.Context, id uuid.UUID) (*CatalogBrand, error)
	BrandNameExists(ctx context.Context, name string) (bool, error)
	ListBrands(ctx context.Context) ([]*CatalogBrand, error)

	GetType(ctx context.Context, id uuid.UUID) (*CatalogType, error)
	ListTypes(ctx context.Context) ([]*CatalogType, error)

	// El commit falla con ErrCatalogItemAlreadyExists si otro producto ganó el nombre.
	AddItem(uow sharedDomain.UnitOfWork, item *CatalogItem)

	// UpdateItem compara contra la versión anterior a la modificación; si otro
	// escritor la cambió, el commit falla con sharedDomain.ErrConcurrencyConflict.
	UpdateItem(uow sharedDomain.UnitOfWork, item *CatalogItem)

	RemoveItem(uow sharedDomain.UnitOfWork, item *CatalogItem)

	// El commit falla con ErrCatalogBrandExists si el nombre ya existe.
	AddBrand(uow sharedDomain.UnitOfWork, brand *CatalogBrand)
}

// ---------- Helpers comunes (cache keys, etc.) ----------

const (
	BrandsCacheKey = "brands"
	TypesCacheKey  = "types"
)

func ItemCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("catalog-item:%s", id.String())
}
