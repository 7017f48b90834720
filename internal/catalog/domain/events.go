package domain

import "github.com/google/uuid"

// Las constantes de los tipos de evento se definen aquí, como valores string.
const (
	CatalogItemCreatedType  = "catalog_item.created"
	CatalogItemUpdatedType  = "catalog_item.updated"
	CatalogItemDeletedType  = "catalog_item.deleted"
	CatalogBrandCreatedType = "catalog_brand.created"
)

const CatalogTopic = "catalog-events"

type CatalogItemCreated struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Price   float64   `json:"price"`
	BrandID uuid.UUID `json:"brandId"`
	TypeID  uuid.UUID `json:"typeId"`
}

func (CatalogItemCreated) EventType() string { return CatalogItemCreatedType }

type CatalogItemUpdated struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    float64   `json:"price"`
	OldPrice float64   `json:"oldPrice"`
	Version  int       `json:"version"`
}

func (CatalogItemUpdated) EventType() string { return CatalogItemUpdatedType }

// PriceChanged indica si la actualización modificó el precio.
func (e CatalogItemUpdated) PriceChanged() bool {
	return e.Price != e.OldPrice
}

type CatalogItemDeleted struct {
	ID uuid.UUID `json:"id"`
}

func (CatalogItemDeleted) EventType() string { return CatalogItemDeletedType }

type CatalogBrandCreated struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (CatalogBrandCreated) EventType() string { return CatalogBrandCreatedType }
