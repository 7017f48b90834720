package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/shared/result"
)

// ---------- Errores de repositorio ----------
var (
	ErrCatalogItemNotFound      = errors.New("catalog item not found")
	ErrCatalogItemAlreadyExists = errors.New("catalog item already exists")
	ErrCatalogBrandNotFound     = errors.New("catalog brand not found")
	ErrCatalogBrandExists       = errors.New("catalog brand already exists")
	ErrCatalogTypeNotFound      = errors.New("catalog type not found")
)

// ---------- Fallos de negocio ----------
const (
	CodeItemNotFound      = "CatalogItem.NotFound"
	CodeItemDuplicated    = "CatalogItem.Duplicated"
	CodeItemBrandNotFound = "CatalogItem.BrandNotFound"
	CodeItemTypeNotFound  = "CatalogItem.TypeNotFound"
	CodeBrandDuplicated   = "CatalogBrand.Duplicated"
)

func ItemNotFound(id uuid.UUID) result.Error {
	return result.NewError(CodeItemNotFound, fmt.Sprintf("catalog item %s was not found", id))
}

func ItemDuplicated(name string) result.Error {
	return result.NewError(CodeItemDuplicated, fmt.Sprintf("a catalog item named %q already exists", name))
}

func ItemBrandNotFound(id uuid.UUID) result.Error {
	return result.NewError(CodeItemBrandNotFound, fmt.Sprintf("catalog brand %s was not found", id))
}

func ItemTypeNotFound(id uuid.UUID) result.Error {
	return result.NewError(CodeItemTypeNotFound, fmt.Sprintf("catalog type %s was not found", id))
}

func BrandDuplicated(name string) result.Error {
	return result.NewError(CodeBrandDuplicated, fmt.Sprintf("a catalog brand named %q already exists", name))
}
