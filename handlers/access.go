package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snmusic/snmusic/backend/go-services/internal/access"
	"github.com/snmusic/snmusic/backend/go-services/pkg/middleware"
)

// NotificationHandler exposes the access-request workflow: users file
// requests, the admin reviews and resolves them.
type NotificationHandler struct {
	svc *access.Service
}

func NewNotificationHandler(svc *access.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

// Register routes under /notification
func (h *NotificationHandler) Register(rg *gin.RouterGroup, authed gin.HandlerFunc) {
	n := rg.Group("/notification")
	n.Use(authed)
	n.POST("/create-notification", h.CreateNotification)
	n.GET("/read-all-notification", middleware.RequireAdmin(), h.ReadAllNotifications)
	n.POST("/read-notification", middleware.RequireAdmin(), h.ReadNotification)
	n.POST("/update-notification", middleware.RequireAdmin(), h.UpdateNotification)
}

// CreateNotification files an access request for the signed-in user.
func (h *NotificationHandler) CreateNotification(c *gin.Context) {
	var req struct {
		MaterialID     string `json:"materialId" binding:"required"`
		ValidityMonths *int   `json:"validityMonths"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := middleware.ClaimsFrom(c)
	n, err := h.svc.RequestAccess(c.Request.Context(), claims.UserID, req.MaterialID, req.ValidityMonths)
	if err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"notification": n})
}

// ReadAllNotifications lists the pending-request queue (admin only).
func (h *NotificationHandler) ReadAllNotifications(c *gin.Context) {
	list, err := h.svc.ListNotifications(c.Request.Context())
	if err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// ReadNotification returns one pending request by id (admin only).
func (h *NotificationHandler) ReadNotification(c *gin.Context) {
	var req struct {
		NotificationID string `json:"notificationId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n, err := h.svc.GetNotification(c.Request.Context(), req.NotificationID)
	if err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// UpdateNotification resolves a pending request with the admin's decision.
func (h *NotificationHandler) UpdateNotification(c *gin.Context) {
	var req struct {
		NotificationID string `json:"notificationId" binding:"required"`
		Approved       *bool  `json:"approved" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.ResolveRequest(c.Request.Context(), req.NotificationID, *req.Approved)
	if err != nil {
		respondAccessError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolution": res})
}

// respondAccessError maps the workflow's error taxonomy to HTTP statuses:
// missing documents are 404, conflicting requests 409, failed commits 503.
func respondAccessError(c *gin.Context, err error) {
	var be *access.BatchError
	switch {
	case errors.Is(err, access.ErrUserNotFound),
		errors.Is(err, access.ErrMaterialNotFound),
		errors.Is(err, access.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, access.ErrDuplicateRequest),
		errors.Is(err, access.ErrAlreadyRequested):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &be):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request could not be committed", "details": be.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
