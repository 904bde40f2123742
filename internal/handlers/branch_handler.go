package handlers

import (
	"net/http"

	"restaurant_ordering/internal/middleware"
	"restaurant_ordering/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BranchHandler struct {
	branchService services.BranchService
	reportService services.ReportService
	log           logrus.FieldLogger
}

func NewBranchHandler(branchService services.BranchService, reportService services.ReportService, log logrus.FieldLogger) *BranchHandler {
	return &BranchHandler{branchService: branchService, reportService: reportService, log: log}
}

func (h *BranchHandler) List(c *gin.Context) {
	branches, err := h.branchService.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch branches")
		return
	}
	c.JSON(http.StatusOK, branches)
}

func (h *BranchHandler) Create(c *gin.Context) {
	var req services.CreateBranchInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	branch, err := h.branchService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err, "Failed to create branch")
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func (h *BranchHandler) Settings(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid branch id")
		return
	}
	branch, err := h.branchService.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err, "Failed to fetch branch settings")
		return
	}
	c.JSON(http.StatusOK, branch.BranchSettings)
}

func (h *BranchHandler) UpdateSettings(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		badRequest(c, "invalid branch id")
		return
	}
	var req services.SettingsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	branch, err := h.branchService.UpdateSettings(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, h.log, err, "Failed to update branch settings")
		return
	}
	c.JSON(http.StatusOK, branch.BranchSettings)
}

func (h *BranchHandler) Stats(c *gin.Context) {
	branchID, ok := optionalUintQuery(c, "branchId")
	if !ok {
		badRequest(c, "invalid branchId")
		return
	}
	stats, err := h.reportService.Stats(c.Request.Context(), middleware.ActorFrom(c), branchID)
	if err != nil {
		respondError(c, h.log, err, "Server error while fetching stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}
