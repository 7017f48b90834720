package http

import "github.com/gin-gonic/gin"

// RegisterCatalogRoutes registra las rutas HTTP del catálogo. Las mutaciones exigen
// la cabecera Idempotency-Key.
func RegisterCatalogRoutes(r gin.IRouter, handler *CatalogHandler) {
	items := r.Group("/catalog-items")
	{
		items.GET("", handler.ListItems)                                  // Listar con filtros y paginación
		items.GET("/:id", handler.GetItem)                                // Obtener un producto por su ID
		items.POST("", RequireIdempotencyKey(), handler.CreateItem)       // Crear un producto
		items.PUT("/:id", RequireIdempotencyKey(), handler.UpdateItem)    // Actualizar un producto
		items.DELETE("/:id", RequireIdempotencyKey(), handler.DeleteItem) // Eliminar un producto
	}

	brands := r.Group("/catalog-brands")
	{
		brands.GET("", handler.ListBrands)
		brands.POST("", RequireIdempotencyKey(), handler.CreateBrand)
	}

	r.GET("/catalog-types", handler.ListTypes)
}
