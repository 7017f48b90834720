package application

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/catalog/domain"
	"github.com/davicafu/hexashop/internal/shared/pipeline"
)

const (
	itemByIDExpiration  = 2 * time.Minute
	itemsListExpiration = 30 * time.Second

	DefaultPageSize = 10
	MaxPageSize     = 100
)

func ttl(d time.Duration) *time.Duration { return &d }

// GetCatalogBrands usa el TTL por defecto del pipeline.
type GetCatalogBrands struct{}

func (GetCatalogBrands) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "GetCatalogBrands", Kind: pipeline.KindQuery, CacheKey: domain.BrandsCacheKey, Retry: true}
}

type GetCatalogTypes struct{}

func (GetCatalogTypes) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "GetCatalogTypes", Kind: pipeline.KindQuery, CacheKey: domain.TypesCacheKey, Retry: true}
}

type GetCatalogItemByID struct {
	ID uuid.UUID `validate:"required"`
}

func (q GetCatalogItemByID) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:       "GetCatalogItemByID",
		Kind:       pipeline.KindQuery,
		CacheKey:   domain.ItemCacheKey(q.ID),
		Expiration: ttl(itemByIDExpiration),
		Retry:      true,
	}
}

// ListCatalogItems pagina por offset. Cada combinación de filtros y página es
// una entrada de caché distinta que expira sola a los 30s.
type ListCatalogItems struct {
	BrandID  *uuid.UUID
	TypeID   *uuid.UUID
	Name     string   `validate:"max=50"`
	MinPrice *float64 `validate:"omitempty,gte=0"`
	MaxPrice *float64 `validate:"omitempty,gte=0"`
	Limit    int      `validate:"gte=0,lte=100"`
	Offset   int      `validate:"gte=0"`
	SortBy   string   `validate:"omitempty,oneof=name price created_at"`
	Desc     bool
}

func (q ListCatalogItems) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:       "ListCatalogItems",
		Kind:       pipeline.KindQuery,
		CacheKey:   q.cacheKey(),
		Expiration: ttl(itemsListExpiration),
		Retry:      true,
	}
}

func (q ListCatalogItems) Validate() error {
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return errors.New("minPrice must not exceed maxPrice")
	}
	return nil
}

func (q ListCatalogItems) cacheKey() string {
	parts := []string{
		"catalog-items",
		optional(q.BrandID),
		optional(q.TypeID),
		strings.ToLower(q.Name),
		optional(q.MinPrice),
		optional(q.MaxPrice),
		fmt.Sprintf("%d", q.Limit),
		fmt.Sprintf("%d", q.Offset),
		q.SortBy,
		fmt.Sprintf("%t", q.Desc),
	}
	return strings.Join(parts, ":")
}

func optional[T any](v *T) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

// Page es una página de resultados con el total de coincidencias.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
