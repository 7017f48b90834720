package sqlrepo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlite"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
)

type fixture struct {
	db   *sql.DB
	repo *CatalogRepo
	uows *sqlstore.UnitOfWorkFactory
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, sqlite.InitSchema(db))
	require.NoError(t, InitSchema(db, sqlite.Dialect))
	// La siembra es repetible
	require.NoError(t, InitSchema(db, sqlite.Dialect))

	return &fixture{
		db:   db,
		repo: NewCatalogRepo(db, sqlite.Dialect),
		uows: sqlstore.NewUnitOfWorkFactory(db, sqlite.Dialect),
	}
}

func (f *fixture) addBrand(t *testing.T, name string) *catalogDomain.CatalogBrand {
	t.Helper()
	brand := catalogDomain.NewCatalogBrand(name)
	uow := f.uows.New()
	f.repo.AddBrand(uow, brand)
	require.NoError(t, uow.Commit(context.Background()))
	return brand
}

func (f *fixture) addItem(t *testing.T, name string, price float64, brandID uuid.UUID) *catalogDomain.CatalogItem {
	t.Helper()
	item := catalogDomain.NewCatalogItem(name, "desc", price, "", brandID, catalogDomain.TypeID("Mug"), time.Now())
	uow := f.uows.New()
	f.repo.AddItem(uow, item)
	require.NoError(t, uow.Commit(context.Background()))
	return item
}

func outboxCount(t *testing.T, db *sql.DB, eventType string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM outbox_messages WHERE type = ?`, eventType).Scan(&n))
	return n
}

func TestCatalogRepo_AddAndGetItem(t *testing.T) {
	f := setup(t)
	brand := f.addBrand(t, "Acme")
	item := f.addItem(t, "Cup", 9.5, brand.ID)

	got, err := f.repo.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cup", got.Name)
	assert.Equal(t, 9.5, got.Price)
	assert.Equal(t, brand.ID, got.BrandID)
	assert.Equal(t, 1, got.Version)

	assert.Equal(t, 1, outboxCount(t, f.db, catalogDomain.CatalogItemCreatedType))
	assert.Equal(t, 1, outboxCount(t, f.db, catalogDomain.CatalogBrandCreatedType))

	_, err = f.repo.GetItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, catalogDomain.ErrCatalogItemNotFound)
}

func TestCatalogRepo_DuplicateNames(t *testing.T) {
	f := setup(t)
	brand := f.addBrand(t, "Acme")
	f.addItem(t, "Cup", 1, brand.ID)

	dupItem := catalogDomain.NewCatalogItem("Cup", "", 2, "", brand.ID, catalogDomain.TypeID("Mug"), time.Now())
	uow := f.uows.New()
	f.repo.AddItem(uow, dupItem)
	assert.ErrorIs(t, uow.Commit(context.Background()), catalogDomain.ErrCatalogItemAlreadyExists)

	dupBrand := catalogDomain.NewCatalogBrand("Acme")
	uow = f.uows.New()
	f.repo.AddBrand(uow, dupBrand)
	assert.ErrorIs(t, uow.Commit(context.Background()), catalogDomain.ErrCatalogBrandExists)

	exists, err := f.repo.ItemNameExists(context.Background(), "Cup")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = f.repo.BrandNameExists(context.Background(), "Nope")
	require.NoError(t, err)
	assert.False(t, exists)

	// Ningún evento sobrevive a un commit fallido
	assert.Equal(t, 1, outboxCount(t, f.db, catalogDomain.CatalogItemCreatedType))
}

func TestCatalogRepo_UpdateDetectsStaleVersion(t *testing.T) {
	f := setup(t)
	brand := f.addBrand(t, "Acme")
	item := f.addItem(t, "Cup", 1, brand.ID)
	ctx := context.Background()

	first, err := f.repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	stale, err := f.repo.GetItem(ctx, item.ID)
	require.NoError(t, err)

	first.Update("Cup", "new", 2, "", brand.ID, first.TypeID, time.Now())
	uow := f.uows.New()
	f.repo.UpdateItem(uow, first)
	require.NoError(t, uow.Commit(ctx))

	stale.Update("Cup", "stale", 3, "", brand.ID, stale.TypeID, time.Now())
	uow = f.uows.New()
	f.repo.UpdateItem(uow, stale)
	assert.ErrorIs(t, uow.Commit(ctx), sharedDomain.ErrConcurrencyConflict)

	got, err := f.repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 1, outboxCount(t, f.db, catalogDomain.CatalogItemUpdatedType))
}

func TestCatalogRepo_RemoveItem(t *testing.T) {
	f := setup(t)
	brand := f.addBrand(t, "Acme")
	item := f.addItem(t, "Cup", 1, brand.ID)
	ctx := context.Background()

	loaded, err := f.repo.GetItem(ctx, item.ID)
	require.NoError(t, err)
	loaded.MarkDeleted()
	uow := f.uows.New()
	f.repo.RemoveItem(uow, loaded)
	require.NoError(t, uow.Commit(ctx))

	_, err = f.repo.GetItem(ctx, item.ID)
	assert.ErrorIs(t, err, catalogDomain.ErrCatalogItemNotFound)
	assert.Equal(t, 1, outboxCount(t, f.db, catalogDomain.CatalogItemDeletedType))
}

func TestCatalogRepo_ListItemsFiltersAndPages(t *testing.T) {
	f := setup(t)
	acme := f.addBrand(t, "Acme")
	other := f.addBrand(t, "Other")
	f.addItem(t, "Cup", 3, acme.ID)
	f.addItem(t, "Cap", 1, acme.ID)
	f.addItem(t, "Bowl", 2, acme.ID)
	f.addItem(t, "Cork", 5, other.ID)
	ctx := context.Background()

	items, total, err := f.repo.ListItems(ctx,
		sharedDomain.And(catalogDomain.BrandCriteria{ID: acme.ID}),
		sharedDomain.OffsetPagination{Limit: 2, Offset: 0},
		sharedDomain.Sort{Field: "price"},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Cap", items[0].Name)
	assert.Equal(t, "Bowl", items[1].Name)

	items, total, err = f.repo.ListItems(ctx,
		sharedDomain.And(catalogDomain.NameLikeCriteria{Name: "C"}),
		sharedDomain.OffsetPagination{Limit: 10, Offset: 1},
		sharedDomain.Sort{Field: "name; DROP TABLE catalog_items", Desc: true},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	// Campo no permitido: se ordena por nombre DESC (Cup, Cork, Cap)
	assert.Equal(t, "Cork", items[0].Name)
	assert.Equal(t, "Cap", items[1].Name)
}

func TestCatalogRepo_BrandsAndTypes(t *testing.T) {
	f := setup(t)
	f.addBrand(t, "Zeta")
	f.addBrand(t, "Acme")
	ctx := context.Background()

	brands, err := f.repo.ListBrands(ctx)
	require.NoError(t, err)
	require.Len(t, brands, 2)
	assert.Equal(t, "Acme", brands[0].Name)

	_, err = f.repo.GetBrand(ctx, uuid.New())
	assert.ErrorIs(t, err, catalogDomain.ErrCatalogBrandNotFound)

	types, err := f.repo.ListTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, types, len(catalogDomain.DefaultTypes()))

	mug, err := f.repo.GetType(ctx, catalogDomain.TypeID("Mug"))
	require.NoError(t, err)
	assert.Equal(t, "Mug", mug.Name)

	_, err = f.repo.GetType(ctx, uuid.New())
	assert.ErrorIs(t, err, catalogDomain.ErrCatalogTypeNotFound)
}
