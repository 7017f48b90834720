package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	catalogDomain "github.com/davicafu/hexashop/internal/catalog/domain"
	sharedDomain "github.com/davicafu/hexashop/internal/shared/domain"
	"github.com/davicafu/hexashop/internal/shared/infra/platform/db/sqlstore"
	sharedUtils "github.com/davicafu/hexashop/internal/shared/infra/utils"
)

const itemColumns = "id, name, description, price, picture_uri, brand_id, type_id, version, created_at, updated_at"

// Campos por los que se permite ordenar; evita inyectar SQL vía el parámetro de orden.
var sortableFields = map[string]bool{"name": true, "price": true, "created_at": true}

// CatalogRepo implementa catalogDomain.CatalogRepository sobre SQLite o Postgres.
type CatalogRepo struct {
	db      *sql.DB
	dialect sqlstore.Dialect
}

func NewCatalogRepo(db *sql.DB, dialect sqlstore.Dialect) *CatalogRepo {
	return &CatalogRepo{db: db, dialect: dialect}
}

// ------------------ Lectura ------------------

func (r *CatalogRepo) GetItem(ctx context.Context, id uuid.UUID) (*catalogDomain.CatalogItem, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT "+itemColumns+" FROM catalog_items WHERE id = ?"), id.String())
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalogDomain.ErrCatalogItemNotFound
		}
		return nil, fmt.Errorf("db scan error: %w", err)
	}
	return item, nil
}

// applyCriteria traduce criterios a SQL con '?'; Rebind los adapta al dialecto.
func applyCriteria(criteria sharedDomain.Criteria) (string, []interface{}) {
	if criteria == nil {
		return "", nil
	}
	conds := criteria.ToConditions()
	if len(conds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(conds))
	args := make([]interface{}, 0, len(conds))
	for _, c := range conds {
		clauses = append(clauses, fmt.Sprintf("%s %s ?", c.Field, c.Op))
		args = append(args, c.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *CatalogRepo) ListItems(ctx context.Context, criteria sharedDomain.Criteria, page sharedDomain.OffsetPagination, sort sharedDomain.Sort) ([]*catalogDomain.CatalogItem, int, error) {
	whereSQL, args := applyCriteria(criteria)

	var total int
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT COUNT(*) FROM catalog_items"+whereSQL), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count catalog items: %w", err)
	}

	field := sort.Field
	if !sortableFields[field] {
		field = "name"
	}
	query := "SELECT " + itemColumns + " FROM catalog_items" + whereSQL +
		fmt.Sprintf(" ORDER BY %s %s, id LIMIT ? OFFSET ?", field, sharedUtils.Ternary(sort.Desc, "DESC", "ASC"))
	args = append(args, page.Limit, page.Offset)

	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*catalogDomain.CatalogItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *CatalogRepo) ItemNameExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM catalog_items WHERE name = ?", name)
}

func (r *CatalogRepo) GetBrand(ctx context.Context, id uuid.UUID) (*catalogDomain.CatalogBrand, error) {
	var b catalogDomain.CatalogBrand
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT id, name FROM catalog_brands WHERE id = ?"), id.String()).Scan(&b.ID, &b.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogDomain.ErrCatalogBrandNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *CatalogRepo) BrandNameExists(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, "SELECT 1 FROM catalog_brands WHERE name = ?", name)
}

func (r *CatalogRepo) ListBrands(ctx context.Context) ([]*catalogDomain.CatalogBrand, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM catalog_brands ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	brands := make([]*catalogDomain.CatalogBrand, 0)
	for rows.Next() {
		var b catalogDomain.CatalogBrand
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, err
		}
		brands = append(brands, &b)
	}
	return brands, rows.Err()
}

func (r *CatalogRepo) GetType(ctx context.Context, id uuid.UUID) (*catalogDomain.CatalogType, error) {
	var t catalogDomain.CatalogType
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind("SELECT id, name FROM catalog_types WHERE id = ?"), id.String()).Scan(&t.ID, &t.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalogDomain.ErrCatalogTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *CatalogRepo) ListTypes(ctx context.Context) ([]*catalogDomain.CatalogType, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM catalog_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]*catalogDomain.CatalogType, 0)
	for rows.Next() {
		var t catalogDomain.CatalogType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}

func (r *CatalogRepo) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ------------------ Escritura (Unit of Work) ------------------

func (r *CatalogRepo) AddItem(uow sharedDomain.UnitOfWork, item *catalogDomain.CatalogItem) {
	uow.Stage(func(ctx context.Context, tx sharedDomain.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO catalog_items ("+itemColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			item.ID.String(), item.Name, item.Description, item.Price, item.PictureURI,
			item.BrandID.String(), item.TypeID.String(), item.Version, item.CreatedAt, item.UpdatedAt,
		)
		if r.dialect.IsUnique(err) {
			return catalogDomain.ErrCatalogItemAlreadyExists
		}
		return err
	})
	uow.Track(item)
}

func (r *CatalogRepo) UpdateItem(uow sharedDomain.UnitOfWork, item *catalogDomain.CatalogItem) {
	expected := item.Version - 1
	uow.Stage(func(ctx context.Context, tx sharedDomain.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE catalog_items
			SET name = ?, description = ?, price = ?, picture_uri = ?, brand_id = ?, type_id = ?,
			    version = ?, updated_at = ?
			WHERE id = ? AND version = ?`,
			item.Name, item.Description, item.Price, item.PictureURI, item.BrandID.String(), item.TypeID.String(),
			item.Version, item.UpdatedAt, item.ID.String(), expected,
		)
		if r.dialect.IsUnique(err) {
			return catalogDomain.ErrCatalogItemAlreadyExists
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return requireRow(res)
	})
	uow.Track(item)
}

func (r *CatalogRepo) RemoveItem(uow sharedDomain.UnitOfWork, item *catalogDomain.CatalogItem) {
	uow.Stage(func(ctx context.Context, tx sharedDomain.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM catalog_items WHERE id = ? AND version = ?", item.ID.String(), item.Version)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return requireRow(res)
	})
	uow.Track(item)
}

func (r *CatalogRepo) AddBrand(uow sharedDomain.UnitOfWork, brand *catalogDomain.CatalogBrand) {
	uow.Stage(func(ctx context.Context, tx sharedDomain.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO catalog_brands (id, name) VALUES (?, ?)", brand.ID.String(), brand.Name)
		if r.dialect.IsUnique(err) {
			return catalogDomain.ErrCatalogBrandExists
		}
		return err
	})
	uow.Track(brand)
}

// requireRow traduce cero filas afectadas en un conflicto de concurrencia optimista.
func requireRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get RowsAffected: %w", err)
	}
	if rows == 0 {
		return sharedDomain.ErrConcurrencyConflict
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(s scanner) (*catalogDomain.CatalogItem, error) {
	var item catalogDomain.CatalogItem
	err := s.Scan(
		&item.ID, &item.Name, &item.Description, &item.Price, &item.PictureURI,
		&item.BrandID, &item.TypeID, &item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

var _ catalogDomain.CatalogRepository = (*CatalogRepo)(nil)
