package handlers

import (
	"net/http"

	"restaurant_ordering/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	authService services.AuthService
	log         logrus.FieldLogger
}

func NewAuthHandler(authService services.AuthService, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	if err := h.authService.Register(c.Request.Context(), req); err != nil {
		respondError(c, h.log, err, "Verification e-mail could not be sent. Please use a valid address.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Registration received. Check your inbox to verify your account.",
	})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	if err := h.authService.Verify(c.Request.Context(), c.Query("token")); err != nil {
		respondError(c, h.log, err, "Verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "E-mail verified. You can now log in.",
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request format")
		return
	}
	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err, "Login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   res.Token,
		"user": gin.H{
			"id":       res.User.ID,
			"username": res.User.Username,
			"role":     res.User.Role,
			"branchId": res.User.BranchID,
		},
	})
}
