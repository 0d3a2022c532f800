package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/pkg/middleware"
)

// UserHandler exposes user reads: profiles, alerts and entitlement views.
type UserHandler struct {
	svc *users.Service
}

func NewUserHandler(svc *users.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Register routes under /user
func (h *UserHandler) Register(rg *gin.RouterGroup, authed gin.HandlerFunc) {
	u := rg.Group("/user")
	u.Use(authed)
	u.GET("/read-all-user", middleware.RequireAdmin(), h.ReadAllUsers)
	u.POST("/read-identity-user", middleware.RequireAdmin(), h.ReadIdentityUser)
	u.POST("/read-user", h.ReadUser)
	u.POST("/read-user-alert", h.ReadUserAlerts)
	u.POST("/read-user-study", h.ReadUserStudy)
	u.POST("/read-user-unapproved-study", h.ReadUserUnapprovedStudy)
	u.POST("/read-single-user-study", h.ReadSingleUserStudy)
}

// requestedUserID resolves which user a read targets: admins may pass any
// userId, everyone else reads themselves.
func requestedUserID(c *gin.Context, bodyUserID string) string {
	claims := middleware.ClaimsFrom(c)
	if claims.Admin && bodyUserID != "" {
		return bodyUserID
	}
	return claims.UserID
}

func (h *UserHandler) ReadAllUsers(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

// ReadIdentityUser searches users by name, email or id substring.
func (h *UserHandler) ReadIdentityUser(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.svc.Search(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (h *UserHandler) ReadUser(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	u, err := h.svc.Get(c.Request.Context(), requestedUserID(c, req.UserID))
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (h *UserHandler) ReadUserAlerts(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	alerts, err := h.svc.Alerts(c.Request.Context(), requestedUserID(c, req.UserID))
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// ReadUserStudy returns the user's approved entitlements, optionally capped.
func (h *UserHandler) ReadUserStudy(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
		Limit  int    `json:"limit"`
	}
	_ = c.ShouldBindJSON(&req)
	ents, err := h.svc.Entitlements(c.Request.Context(), requestedUserID(c, req.UserID), models.EntitlementApproved)
	if err != nil {
		respondUserError(c, err)
		return
	}
	if req.Limit > 0 && req.Limit < len(ents) {
		ents = ents[:req.Limit]
	}
	c.JSON(http.StatusOK, gin.H{"entitlements": ents})
}

func (h *UserHandler) ReadUserUnapprovedStudy(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	_ = c.ShouldBindJSON(&req)
	ents, err := h.svc.Entitlements(c.Request.Context(), requestedUserID(c, req.UserID), models.EntitlementPending)
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entitlements": ents})
}

func (h *UserHandler) ReadSingleUserStudy(c *gin.Context) {
	var req struct {
		UserID     string `json:"userId"`
		MaterialID string `json:"materialId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.svc.Entitlement(c.Request.Context(), requestedUserID(c, req.UserID), req.MaterialID)
	if err != nil {
		respondUserError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entitlement": e})
}

func respondUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrNotFound), errors.Is(err, users.ErrNoEntitlement):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
