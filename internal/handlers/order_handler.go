package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"restaurant_ordering/internal/middleware"
	"restaurant_ordering/internal/models"
	"restaurant_ordering/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type OrderHandler struct {
	orderService services.OrderService
	log          logrus.FieldLogger
}

func NewOrderHandler(orderService services.OrderService, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{orderService: orderService, log: log}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}

	res, err := h.orderService.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, h.log, err, "Order could not be created")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": res.OrderID, "total": res.Total})
}

func (h *OrderHandler) ListActive(c *gin.Context) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	orders, err := h.orderService.ListActive(c.Request.Context(), middleware.ActorFrom(c), branchID)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch active orders")
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) completedQuery(c *gin.Context) (services.CompletedQuery, bool) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return services.CompletedQuery{}, false
	}
	q := services.CompletedQuery{BranchID: branchID, From: c.Query("from"), To: c.Query("to")}
	if raw := c.Query("page"); raw != "" {
		q.Page, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("perPage"); raw != "" {
		q.PerPage, _ = strconv.Atoi(raw)
	}
	return q, true
}

func (h *OrderHandler) ListCompleted(c *gin.Context) {
	q, ok := h.completedQuery(c)
	if !ok {
		return
	}
	page, err := h.orderService.ListCompleted(c.Request.Context(), middleware.ActorFrom(c), q)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch completed orders")
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportCompleted streams the same filter as ListCompleted as an XLSX workbook.
func (h *OrderHandler) ExportCompleted(c *gin.Context) {
	q, ok := h.completedQuery(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.orderService.ExportCompleted(c.Request.Context(), middleware.ActorFrom(c), q, &buf); err != nil {
		respondError(c, h.log, err, "Failed to export orders")
		return
	}
	filename := fmt.Sprintf("completed-orders-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *OrderHandler) Complete(c *gin.Context) {
	var req struct {
		OrderID uint `json:"orderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == 0 {
		badRequest(c, "orderId is required")
		return
	}
	if err := h.orderService.Complete(c.Request.Context(), middleware.ActorFrom(c), req.OrderID); err != nil {
		respondError(c, h.log, err, "Failed to complete order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order marked as completed"})
}

func (h *OrderHandler) SetStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid order id")
		return
	}
	var req struct {
		Status models.OrderStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	if err := h.orderService.Transition(c.Request.Context(), middleware.ActorFrom(c), id, req.Status); err != nil {
		respondError(c, h.log, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}
