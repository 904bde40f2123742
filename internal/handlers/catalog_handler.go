package handlers

import (
	"net/http"

	"restaurant_ordering/internal/middleware"
	"restaurant_ordering/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// maxPhotoBytes bounds a single menu photo upload.
const maxPhotoBytes = 5 << 20

type CatalogHandler struct {
	catalogService services.CatalogService
	log            logrus.FieldLogger
}

func NewCatalogHandler(catalogService services.CatalogService, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, log: log}
}

func (h *CatalogHandler) ListMenu(c *gin.Context) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	items, err := h.catalogService.ListMenu(c.Request.Context(), middleware.ActorFrom(c), branchID)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch menu")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) ListMenuByCategory(c *gin.Context) {
	categoryID, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid category id")
		return
	}
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	items, err := h.catalogService.ListMenuByCategory(c.Request.Context(), middleware.ActorFrom(c), branchID, categoryID)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch menu")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) SaveMenuItem(c *gin.Context) {
	var req services.MenuItemInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	item, err := h.catalogService.SaveMenuItem(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err, "Failed to save menu item")
		return
	}
	c.JSON(http.StatusOK, item)
}

// UploadPhoto accepts a multipart "photo" field.
func (h *CatalogHandler) UploadPhoto(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid menu item id")
		return
	}
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBytes)
	header, err := c.FormFile("photo")
	if err != nil {
		badRequest(c, "photo file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "photo file is unreadable")
		return
	}
	defer file.Close()

	photo, err := h.catalogService.SetMenuPhoto(c.Request.Context(), middleware.ActorFrom(c), branchID, id, header.Filename, file)
	if err != nil {
		respondError(c, h.log, err, "Failed to upload photo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"photo": photo})
}

func (h *CatalogHandler) DeleteMenuItem(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid menu item id")
		return
	}
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	if err := h.catalogService.DeleteMenuItem(c.Request.Context(), middleware.ActorFrom(c), branchID, id); err != nil {
		respondError(c, h.log, err, "Failed to delete menu item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	rows, err := h.catalogService.ListCategories(c.Request.Context(), branchID)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *CatalogHandler) UncategorizedCount(c *gin.Context) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	n, err := h.catalogService.UncategorizedCount(c.Request.Context(), middleware.ActorFrom(c), branchID)
	if err != nil {
		respondError(c, h.log, err, "Failed to count uncategorized items")
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *CatalogHandler) ReorderCategories(c *gin.Context) {
	var req struct {
		BranchID *uint `json:"branchId"`
		Order    []uint `json:"order"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	if err := h.catalogService.ReorderCategories(c.Request.Context(), middleware.ActorFrom(c), req.BranchID, req.Order); err != nil {
		respondError(c, h.log, err, "Failed to reorder categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *CatalogHandler) SaveCategory(c *gin.Context) {
	var req services.CategoryInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	saved, err := h.catalogService.SaveCategory(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err, "Failed to save category")
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *CatalogHandler) DeleteCategory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid category id")
		return
	}
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	if err := h.catalogService.DeleteCategory(c.Request.Context(), middleware.ActorFrom(c), branchID, id); err != nil {
		respondError(c, h.log, err, "Failed to delete category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
