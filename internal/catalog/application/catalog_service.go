package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davicafu/hexashop/internal/catalog/domain"
	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/cache"
	"github.com/davicafu/hexashop/internal/shared/pipeline"
	"github.com/davicafu/hexashop/internal/shared/result"
)

const evictTimeout = 500 * time.Millisecond

// CatalogService define los casos de uso del catálogo. Cada método entra por el
// pipeline; los handlers privados solo contienen la lógica de negocio.
type CatalogService struct {
	pipeline *pipeline.Pipeline
	repo     domain.CatalogRepository
	uows     sharedDomain.UnitOfWorkFactory
	cache    cache.Cache
	log      *zap.Logger
	now      func() time.Time
}

// NewCatalogService constructor. cache puede ser nil: entonces no se invalida nada
// tras un commit.
func NewCatalogService(p *pipeline.Pipeline, repo domain.CatalogRepository, uows sharedDomain.UnitOfWorkFactory, c cache.Cache, log *zap.Logger) *CatalogService {
	return &CatalogService{
		pipeline: p,
		repo:     repo,
		uows:     uows,
		cache:    c,
		log:      log,
		now:      time.Now,
	}
}

// ---------------- Comandos ----------------

func (s *CatalogService) CreateItem(ctx context.Context, cmd CreateCatalogItem) (result.Result[*domain.CatalogItem], error) {
	return pipeline.Execute(ctx, s.pipeline, cmd, s.createItem)
}

func (s *CatalogService) UpdateItem(ctx context.Context, cmd UpdateCatalogItem) (result.Result[*domain.CatalogItem], error) {
	return pipeline.Execute(ctx, s.pipeline, cmd, s.updateItem)
}

func (s *CatalogService) DeleteItem(ctx context.Context, cmd DeleteCatalogItem) (result.Result[uuid.UUID], error) {
	return pipeline.Execute(ctx, s.pipeline, cmd, s.deleteItem)
}

func (s *CatalogService) CreateBrand(ctx context.Context, cmd CreateCatalogBrand) (result.Result[*domain.CatalogBrand], error) {
	return pipeline.Execute(ctx, s.pipeline, cmd, s.createBrand)
}

// ---------------- Queries ----------------

func (s *CatalogService) GetBrands(ctx context.Context) (result.Result[[]*domain.CatalogBrand], error) {
	return pipeline.Execute(ctx, s.pipeline, GetCatalogBrands{}, s.getBrands)
}

func (s *CatalogService) GetTypes(ctx context.Context) (result.Result[[]*domain.CatalogType], error) {
	return pipeline.Execute(ctx, s.pipeline, GetCatalogTypes{}, s.getTypes)
}

func (s *CatalogService) GetItem(ctx context.Context, id uuid.UUID) (result.Result[*domain.CatalogItem], error) {
	return pipeline.Execute(ctx, s.pipeline, GetCatalogItemByID{ID: id}, s.getItem)
}

// ListItems normaliza la paginación antes de entrar al pipeline para que páginas
// equivalentes compartan entrada de caché.
func (s *CatalogService) ListItems(ctx context.Context, q ListCatalogItems) (result.Result[Page[*domain.CatalogItem]], error) {
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	return pipeline.Execute(ctx, s.pipeline, q, s.listItems)
}

// ---------------- Handlers ----------------

func (s *CatalogService) createItem(ctx context.Context, cmd CreateCatalogItem) (result.Result[*domain.CatalogItem], error) {
	exists, err := s.repo.ItemNameExists(ctx, cmd.Name)
	if err != nil {
		return result.Result[*domain.CatalogItem]{}, err
	}
	if exists {
		return result.Failure[*domain.CatalogItem](domain.ItemDuplicated(cmd.Name)), nil
	}
	if failure, err := s.checkReferences(ctx, cmd.BrandID, cmd.TypeID); err != nil || !failure.IsZero() {
		return result.Failure[*domain.CatalogItem](failure), err
	}

	item := domain.NewCatalogItem(cmd.Name, cmd.Description, cmd.Price, cmd.PictureURI, cmd.BrandID, cmd.TypeID, s.now())

	uow := s.uows.New()
	s.repo.AddItem(uow, item)
	if err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrCatalogItemAlreadyExists) {
			return result.Failure[*domain.CatalogItem](domain.ItemDuplicated(cmd.Name)), nil
		}
		return commitFailure[*domain.CatalogItem](err)
	}

	s.log.Info("🆕 Catalog item created", zap.String("id", item.ID.String()), zap.String("name", item.Name))
	return result.Success(item), nil
}

func (s *CatalogService) updateItem(ctx context.Context, cmd UpdateCatalogItem) (result.Result[*domain.CatalogItem], error) {
	item, err := s.repo.GetItem(ctx, cmd.ID)
	if errors.Is(err, domain.ErrCatalogItemNotFound) {
		return result.Failure[*domain.CatalogItem](domain.ItemNotFound(cmd.ID)), nil
	}
	if err != nil {
		return result.Result[*domain.CatalogItem]{}, err
	}

	if cmd.Name != item.Name {
		exists, err := s.repo.ItemNameExists(ctx, cmd.Name)
		if err != nil {
			return result.Result[*domain.CatalogItem]{}, err
		}
		if exists {
			return result.Failure[*domain.CatalogItem](domain.ItemDuplicated(cmd.Name)), nil
		}
	}
	if failure, err := s.checkReferences(ctx, cmd.BrandID, cmd.TypeID); err != nil || !failure.IsZero() {
		return result.Failure[*domain.CatalogItem](failure), err
	}

	item.Update(cmd.Name, cmd.Description, cmd.Price, cmd.PictureURI, cmd.BrandID, cmd.TypeID, s.now())

	uow := s.uows.New()
	s.repo.UpdateItem(uow, item)
	if err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrCatalogItemAlreadyExists) {
			return result.Failure[*domain.CatalogItem](domain.ItemDuplicated(cmd.Name)), nil
		}
		return commitFailure[*domain.CatalogItem](err)
	}

	s.evict(ctx, domain.ItemCacheKey(item.ID))
	s.log.Info("✏️ Catalog item updated", zap.String("id", item.ID.String()), zap.Int("version", item.Version))
	return result.Success(item), nil
}

func (s *CatalogService) deleteItem(ctx context.Context, cmd DeleteCatalogItem) (result.Result[uuid.UUID], error) {
	item, err := s.repo.GetItem(ctx, cmd.ID)
	if errors.Is(err, domain.ErrCatalogItemNotFound) {
		return result.Failure[uuid.UUID](domain.ItemNotFound(cmd.ID)), nil
	}
	if err != nil {
		return result.Result[uuid.UUID]{}, err
	}

	item.MarkDeleted()
	uow := s.uows.New()
	s.repo.RemoveItem(uow, item)
	if err := uow.Commit(ctx); err != nil {
		return commitFailure[uuid.UUID](err)
	}

	s.evict(ctx, domain.ItemCacheKey(item.ID))
	s.log.Info("🗑️ Catalog item deleted", zap.String("id", item.ID.String()))
	return result.Success(item.ID), nil
}

func (s *CatalogService) createBrand(ctx context.Context, cmd CreateCatalogBrand) (result.Result[*domain.CatalogBrand], error) {
	exists, err := s.repo.BrandNameExists(ctx, cmd.Name)
	if err != nil {
		return result.Result[*domain.CatalogBrand]{}, err
	}
	if exists {
		return result.Failure[*domain.CatalogBrand](domain.BrandDuplicated(cmd.Name)), nil
	}

	brand := domain.NewCatalogBrand(cmd.Name)
	uow := s.uows.New()
	s.repo.AddBrand(uow, brand)
	if err := uow.Commit(ctx); err != nil {
		if errors.Is(err, domain.ErrCatalogBrandExists) {
			return result.Failure[*domain.CatalogBrand](domain.BrandDuplicated(cmd.Name)), nil
		}
		return commitFailure[*domain.CatalogBrand](err)
	}

	s.evict(ctx, domain.BrandsCacheKey)
	s.log.Info("🏷️ Catalog brand created", zap.String("id", brand.ID.String()), zap.String("name", brand.Name))
	return result.Success(brand), nil
}

func (s *CatalogService) getBrands(ctx context.Context, _ GetCatalogBrands) (result.Result[[]*domain.CatalogBrand], error) {
	brands, err := s.repo.ListBrands(ctx)
	if err != nil {
		return result.Result[[]*domain.CatalogBrand]{}, err
	}
	return result.Success(brands), nil
}

func (s *CatalogService) getTypes(ctx context.Context, _ GetCatalogTypes) (result.Result[[]*domain.CatalogType], error) {
	types, err := s.repo.ListTypes(ctx)
	if err != nil {
		return result.Result[[]*domain.CatalogType]{}, err
	}
	return result.Success(types), nil
}

func (s *CatalogService) getItem(ctx context.Context, q GetCatalogItemByID) (result.Result[*domain.CatalogItem], error) {
	item, err := s.repo.GetItem(ctx, q.ID)
	if errors.Is(err, domain.ErrCatalogItemNotFound) {
		return result.Failure[*domain.CatalogItem](domain.ItemNotFound(q.ID)), nil
	}
	if err != nil {
		return result.Result[*domain.CatalogItem]{}, err
	}
	return result.Success(item), nil
}

func (s *CatalogService) listItems(ctx context.Context, q ListCatalogItems) (result.Result[Page[*domain.CatalogItem]], error) {
	criteria := []sharedDomain.Criteria{
		domain.PriceRangeCriteria{Min: q.MinPrice, Max: q.MaxPrice},
	}
	if q.BrandID != nil {
		criteria = append(criteria, domain.BrandCriteria{ID: *q.BrandID})
	}
	if q.TypeID != nil {
		criteria = append(criteria, domain.TypeCriteria{ID: *q.TypeID})
	}
	if q.Name != "" {
		criteria = append(criteria, domain.NameLikeCriteria{Name: q.Name})
	}

	page := sharedDomain.OffsetPagination{Limit: q.Limit, Offset: q.Offset}.Normalize(DefaultPageSize, MaxPageSize)
	items, total, err := s.repo.ListItems(ctx, sharedDomain.And(criteria...), page, sharedDomain.Sort{Field: q.SortBy, Desc: q.Desc})
	if err != nil {
		return result.Result[Page[*domain.CatalogItem]]{}, err
	}
	return result.Success(Page[*domain.CatalogItem]{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}), nil
}

// ---------------- Helpers ----------------

// checkReferences devuelve un fallo de negocio si la marca o el tipo no existen.
func (s *CatalogService) checkReferences(ctx context.Context, brandID, typeID uuid.UUID) (result.Error, error) {
	if _, err := s.repo.GetBrand(ctx, brandID); err != nil {
		if errors.Is(err, domain.ErrCatalogBrandNotFound) {
			return domain.ItemBrandNotFound(brandID), nil
		}
		return result.None, err
	}
	if _, err := s.repo.GetType(ctx, typeID); err != nil {
		if errors.Is(err, domain.ErrCatalogTypeNotFound) {
			return domain.ItemTypeNotFound(typeID), nil
		}
		return result.None, err
	}
	return result.None, nil
}

// commitFailure convierte un conflicto de versión en un fallo Concurrency.Conflict,
// que el stage de reintentos vuelve a ejecutar desde la lectura.
func commitFailure[T any](err error) (result.Result[T], error) {
	if errors.Is(err, sharedDomain.ErrConcurrencyConflict) {
		return result.Failure[T](result.NewError(result.CodeConcurrency, "the catalog item was modified concurrently")), nil
	}
	return result.Result[T]{}, err
}

// evict invalida entradas tras un commit. Un fallo de caché no falla el comando:
// la entrada expira sola.
func (s *CatalogService) evict(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evictTimeout)
	defer cancel()
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.log.Warn("⚠️ Cache eviction failed", zap.String("key", key), zap.Error(err))
		}
	}
}
