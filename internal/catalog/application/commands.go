package application

import (
	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/shared/pipeline"
)

// Los comandos llevan la clave de idempotencia que envía el cliente en la cabecera
// Idempotency-Key; no forma parte del cuerpo.

type CreateCatalogItem struct {
	IdempotencyKey string    `json:"-" validate:"required,max=100"`
	Name           string    `json:"name" validate:"required,max=50"`
	Description    string    `json:"description" validate:"max=500"`
	Price          float64   `json:"price" validate:"gt=0"`
	PictureURI     string    `json:"pictureUri" validate:"omitempty,url"`
	BrandID        uuid.UUID `json:"brandId" validate:"required"`
	TypeID         uuid.UUID `json:"typeId" validate:"required"`
}

func (c CreateCatalogItem) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "CreateCatalogItem", Kind: pipeline.KindCommand, IdempotencyKey: c.IdempotencyKey, Retry: true}
}

type UpdateCatalogItem struct {
	IdempotencyKey string    `json:"-" validate:"required,max=100"`
	ID             uuid.UUID `json:"-" validate:"required"`
	Name           string    `json:"name" validate:"required,max=50"`
	Description    string    `json:"description" validate:"max=500"`
	Price          float64   `json:"price" validate:"gt=0"`
	PictureURI     string    `json:"pictureUri" validate:"omitempty,url"`
	BrandID        uuid.UUID `json:"brandId" validate:"required"`
	TypeID         uuid.UUID `json:"typeId" validate:"required"`
}

func (c UpdateCatalogItem) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "UpdateCatalogItem", Kind: pipeline.KindCommand, IdempotencyKey: c.IdempotencyKey, Retry: true}
}

type DeleteCatalogItem struct {
	IdempotencyKey string    `json:"-" validate:"required,max=100"`
	ID             uuid.UUID `json:"-" validate:"required"`
}

func (c DeleteCatalogItem) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "DeleteCatalogItem", Kind: pipeline.KindCommand, IdempotencyKey: c.IdempotencyKey, Retry: true}
}

type CreateCatalogBrand struct {
	IdempotencyKey string `json:"-" validate:"required,max=100"`
	Name           string `json:"name" validate:"required,max=50"`
}

func (c CreateCatalogBrand) Describe() pipeline.Descriptor {
	return pipeline.Descriptor{Name: "CreateCatalogBrand", Kind: pipeline.KindCommand, IdempotencyKey: c.IdempotencyKey, Retry: true}
}
