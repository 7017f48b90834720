package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
)

// CatalogItem es un producto del catálogo. Version cambia en cada modificación
// y se usa como bloqueo optimista.
type CatalogItem struct {
	sharedDomain.AggregateRoot `json:"-"`

	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	PictureURI  string    `json:"pictureUri"`
	BrandID     uuid.UUID `json:"brandId"`
	TypeID      uuid.UUID `json:"typeId"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewCatalogItem crea el producto y levanta catalog_item.created.
func NewCatalogItem(name, description string, price float64, pictureURI string, brandID, typeID uuid.UUID, now time.Time) *CatalogItem {
	now = now.UTC()
	item := &CatalogItem{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Price:       price,
		PictureURI:  pictureURI,
		BrandID:     brandID,
		TypeID:      typeID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	item.Raise(CatalogItemCreated{
		ID:      item.ID,
		Name:    item.Name,
		Price:   item.Price,
		BrandID: item.BrandID,
		TypeID:  item.TypeID,
	})
	return item
}

// --- Métodos de dominio ---

// Update aplica los cambios, incrementa la versión y levanta catalog_item.updated.
func (i *CatalogItem) Update(name, description string, price float64, pictureURI string, brandID, typeID uuid.UUID, now time.Time) {
	oldPrice := i.Price

	i.Name = name
	i.Description = description
	i.Price = price
	i.PictureURI = pictureURI
	i.BrandID = brandID
	i.TypeID = typeID
	i.Version++
	i.UpdatedAt = now.UTC()

	i.Raise(CatalogItemUpdated{
		ID:       i.ID,
		Name:     i.Name,
		Price:    i.Price,
		OldPrice: oldPrice,
		Version:  i.Version,
	})
}

func (i *CatalogItem) MarkDeleted() {
	i.Raise(CatalogItemDeleted{ID: i.ID})
}

func (i *CatalogItem) PartitionKey() string {
	return i.ID.String()
}

type CatalogBrand struct {
	sharedDomain.AggregateRoot `json:"-"`

	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func NewCatalogBrand(name string) *CatalogBrand {
	brand := &CatalogBrand{ID: uuid.New(), Name: name}
	brand.Raise(CatalogBrandCreated{ID: brand.ID, Name: brand.Name})
	return brand
}

// CatalogType es un dato de referencia sembrado al iniciar el esquema.
type CatalogType struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

var typeNamespace = uuid.MustParse("8f7a3c2e-5b1d-4e6f-9a0b-1c2d3e4f5a6b")

// TypeID deriva un id estable del nombre, para que la siembra sea repetible.
func TypeID(name string) uuid.UUID {
	return uuid.NewSHA1(typeNamespace, []byte(name))
}

// DefaultTypes son los tipos sembrados por InitSchema.
func DefaultTypes() []CatalogType {
	names := []string{"Mug", "T-Shirt", "Sheet", "USB Memory Stick"}
	out := make([]CatalogType, 0, len(names))
	for _, n := range names {
		out = append(out, CatalogType{ID: TypeID(n), Name: n})
	}
	return out
}
