package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mira/outfitadvisor/internal/api/middleware"
	"github.com/mira/outfitadvisor/internal/repository"
)

// ProductHandler handles catalog product endpoints.
type ProductHandler struct {
	productRepo *repository.ProductRepository
}

// NewProductHandler creates a new product handler.
func NewProductHandler(productRepo *repository.ProductRepository) *ProductHandler {
	return &ProductHandler{
		productRepo: productRepo,
	}
}

// GetProduct handles GET /api/v1/products/:id.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id := c.Param("id")

	product, found, err := h.productRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to load product")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load product",
		})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}

	c.JSON(http.StatusOK, product)
}

// ListProducts handles GET /api/v1/products with optional category filtering
// and pagination.
func (h *ProductHandler) ListProducts(c *gin.Context) {
	category := c.Query("category")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	offset := 0
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}

	products, err := h.productRepo.ListByCategory(c.Request.Context(), category, limit, offset)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to list products")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list products",
		})
		return
	}

	total, err := h.productRepo.Count(c.Request.Context())
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to count products")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list products",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}
