package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/jsgaviriam/checkout/internal/domain"
)

// CatalogHandler обслуживает чтение каталога: товары и категории.
type CatalogHandler struct {
	products   domain.ProductRepository
	categories domain.CategoryRepository
	logger     *log.Entry
}

// NewCatalogHandler создаёт handler каталога.
func NewCatalogHandler(products domain.ProductRepository, categories domain.CategoryRepository, logger *log.Entry) *CatalogHandler {
	if logger == nil {
		logger = log.WithField("component", "catalog-handler")
	}
	return &CatalogHandler{products: products, categories: categories, logger: logger}
}

// RegisterRoutes регистрирует маршруты каталога.
func (h *CatalogHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.listProducts)
	e.GET("/products/search", h.searchProducts)
	e.GET("/products/:id", h.getProduct)
	e.GET("/categories", h.listCategories)
	e.GET("/categories/:id/products", h.listCategoryProducts)
}

func (h *CatalogHandler) listProducts(c echo.Context) error {
	items, err := h.products.FindAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductDTOs(items))
}

func (h *CatalogHandler) searchProducts(c echo.Context) error {
	query, err := parseListQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}
	query.Q = c.QueryParam("q")

	items, err := h.products.Search(c.Request().Context(), query)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductDTOs(items))
}

func (h *CatalogHandler) getProduct(c echo.Context) error {
	product, err := h.products.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductDTO(product))
}

func (h *CatalogHandler) listCategories(c echo.Context) error {
	items, err := h.categories.FindAll(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	out := make([]categoryDTO, 0, len(items))
	for _, cat := range items {
		out = append(out, toCategoryDTO(cat))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) listCategoryProducts(c echo.Context) error {
	ctx := c.Request().Context()
	categoryID := c.Param("id")

	// Категория должна существовать: пустой список и неизвестный id различимы.
	if _, err := h.categories.FindByID(ctx, categoryID); err != nil {
		return writeError(c, err)
	}

	query, err := parseListQuery(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	items, err := h.products.FindByCategory(ctx, categoryID, query)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toProductDTOs(items))
}

// parseListQuery читает page/limit из query-параметров.
func parseListQuery(c echo.Context) (domain.ProductListQuery, error) {
	query := domain.ProductListQuery{}

	if v := c.QueryParam("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return query, errInvalidPage
		}
		query.Page = page
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return query, errInvalidLimit
		}
		query.Limit = limit
	}
	return query, nil
}
