package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/davicafu/hexashop/internal/catalog/application"
	"github.com/davicafu/hexashop/pkg/utils"
)

// IdempotencyKeyHeader es la cabecera que identifica un intento lógico de mutación.
const IdempotencyKeyHeader = "Idempotency-Key"

// CatalogHandler encapsula los endpoints HTTP relacionados con el catálogo.
type CatalogHandler struct {
	service *application.CatalogService
}

// NewCatalogHandler crea un nuevo CatalogHandler.
func NewCatalogHandler(service *application.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// RequireIdempotencyKey rechaza mutaciones sin Idempotency-Key.
func RequireIdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(IdempotencyKeyHeader) == "" {
			utils.SendBadRequest(c, "missing "+IdempotencyKeyHeader+" header")
			c.Abort()
			return
		}
		c.Next()
	}
}

// --- Productos ---

// CreateItem endpoint POST /catalog-items
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	var cmd application.CreateCatalogItem
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	cmd.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	res, err := h.service.CreateItem(c.Request.Context(), cmd)
	utils.SendResult(c, http.StatusCreated, res, err)
}

// UpdateItem endpoint PUT /catalog-items/:id
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var cmd application.UpdateCatalogItem
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	cmd.ID = id
	cmd.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	res, err := h.service.UpdateItem(c.Request.Context(), cmd)
	utils.SendResult(c, http.StatusOK, res, err)
}

// DeleteItem endpoint DELETE /catalog-items/:id
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.service.DeleteItem(c.Request.Context(), application.DeleteCatalogItem{
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
		ID:             id,
	})
	utils.SendResult(c, http.StatusNoContent, res, err)
}

// GetItem endpoint GET /catalog-items/:id
func (h *CatalogHandler) GetItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	res, err := h.service.GetItem(c.Request.Context(), id)
	utils.SendResult(c, http.StatusOK, res, err)
}

// ListItems endpoint GET /catalog-items con filtros, paginación y ordenamiento
func (h *CatalogHandler) ListItems(c *gin.Context) {
	q := application.ListCatalogItems{
		Name:   c.Query("name"),
		SortBy: c.Query("sort_field"),
		Desc:   c.Query("sort_desc") == "true",
	}

	// --- Filtros desde query params ---
	if raw := c.Query("brandId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid brandId")
			return
		}
		q.BrandID = &id
	}
	if raw := c.Query("typeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid typeId")
			return
		}
		q.TypeID = &id
	}
	var ok bool
	if q.MinPrice, ok = floatQuery(c, "minPrice"); !ok {
		return
	}
	if q.MaxPrice, ok = floatQuery(c, "maxPrice"); !ok {
		return
	}

	// --- Paginación ---
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		utils.SendBadRequest(c, "invalid limit")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		utils.SendBadRequest(c, "invalid offset")
		return
	}
	q.Limit, q.Offset = limit, offset

	res, err := h.service.ListItems(c.Request.Context(), q)
	utils.SendResult(c, http.StatusOK, res, err)
}

// --- Marcas y tipos ---

// CreateBrand endpoint POST /catalog-brands
func (h *CatalogHandler) CreateBrand(c *gin.Context) {
	var cmd application.CreateCatalogBrand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	cmd.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)

	res, err := h.service.CreateBrand(c.Request.Context(), cmd)
	utils.SendResult(c, http.StatusCreated, res, err)
}

// ListBrands endpoint GET /catalog-brands
func (h *CatalogHandler) ListBrands(c *gin.Context) {
	res, err := h.service.GetBrands(c.Request.Context())
	utils.SendResult(c, http.StatusOK, res, err)
}

// ListTypes endpoint GET /catalog-types
func (h *CatalogHandler) ListTypes(c *gin.Context) {
	res, err := h.service.GetTypes(c.Request.Context())
	utils.SendResult(c, http.StatusOK, res, err)
}

// --- Helpers ---

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid catalog item id")
		return uuid.Nil, false
	}
	return id, true
}

func floatQuery(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		utils.SendBadRequest(c, "invalid "+name)
		return nil, false
	}
	return &v, true
}
