package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/study"
	"github.com/snmusic/snmusic/backend/go-services/pkg/middleware"
)

// StudyHandler exposes the material catalog: admin CRUD plus listing,
// search and entitlement-gated playback for students.
type StudyHandler struct {
	svc *study.Service
}

func NewStudyHandler(svc *study.Service) *StudyHandler {
	return &StudyHandler{svc: svc}
}

// Register routes under /study
func (h *StudyHandler) Register(rg *gin.RouterGroup, authed gin.HandlerFunc) {
	s := rg.Group("/study")
	s.GET("/read-all-study", h.ReadAllStudy)
	s.GET("/read-all-public-study", h.ReadAllPublicStudy)
	s.POST("/read-keyword-study", h.ReadKeywordStudy)
	s.POST("/read-tag-study", h.ReadTagStudy)
	s.POST("/read-study", h.ReadStudy)
	s.POST("/read-ids-study", h.ReadIDsStudy)

	s.POST("/create-study", authed, middleware.RequireAdmin(), h.CreateStudy)
	s.POST("/upload-video", authed, middleware.RequireAdmin(), h.UploadVideo)
	s.POST("/update-study", authed, middleware.RequireAdmin(), h.UpdateStudy)
	s.POST("/delete-study", authed, middleware.RequireAdmin(), h.DeleteStudy)

	s.POST("/playback-study", authed, h.PlaybackStudy)
}

// CreateStudy accepts a multipart form: metadata fields plus an optional
// cover image that gets watermarked before upload.
func (h *StudyHandler) CreateStudy(c *gin.Context) {
	m := &models.StudyMaterial{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Link:        c.PostForm("link"),
		Public:      c.PostForm("public") == "true",
		Tags:        splitTags(c.PostForm("tags")),
	}
	var cover io.Reader
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
			return
		}
		defer f.Close()
		cover = f
	}
	created, err := h.svc.Create(c.Request.Context(), m, cover)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"study": created})
}

// UploadVideo attaches the lesson video to an existing material.
func (h *StudyHandler) UploadVideo(c *gin.Context) {
	materialID := c.PostForm("materialId")
	fh, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read video"})
		return
	}
	defer f.Close()
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	m, err := h.svc.UploadVideo(c.Request.Context(), materialID, f, fh.Size, contentType)
	if err != nil {
		respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"study": m})
}

func (h *StudyHandler) ReadAllStudy(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list study materials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (h *StudyHandler) ReadAllPublicStudy(c *gin.Context) {
	list, err := h.svc.ListPublic(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list study materials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (h *StudyHandler) ReadKeywordStudy(c *gin.Context) {
	var req struct {
		Keyword string `json:"keyword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.svc.Search(c.Request.Context(), req.Keyword, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (h *StudyHandler) ReadTagStudy(c *gin.Context) {
	var req struct {
		Tags []string `json:"tags" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.svc.Search(c.Request.Context(), "", req.Tags)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (h *StudyHandler) ReadStudy(c *gin.Context) {
	var req struct {
		MaterialID string `json:"materialId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.svc.Get(c.Request.Context(), req.MaterialID)
	if err != nil {
		respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"study": m})
}

// ReadIDsStudy returns the materials for a list of ids, e.g. the ids from a
// user's entitlement list. Unknown ids are silently skipped.
func (h *StudyHandler) ReadIDsStudy(c *gin.Context) {
	var req struct {
		MaterialIDs []string `json:"materialIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.svc.GetMany(c.Request.Context(), req.MaterialIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studies": list})
}

func (h *StudyHandler) UpdateStudy(c *gin.Context) {
	materialID := c.PostForm("materialId")
	fields := map[string]interface{}{}
	for _, k := range []string{"title", "description", "link"} {
		if v, ok := c.GetPostForm(k); ok {
			fields[k] = v
		}
	}
	if v, ok := c.GetPostForm("public"); ok {
		fields["public"] = v == "true"
	}
	if v, ok := c.GetPostForm("tags"); ok {
		fields["tags"] = splitTags(v)
	}
	var cover io.Reader
	if fh, err := c.FormFile("image"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
			return
		}
		defer f.Close()
		cover = f
	}
	m, err := h.svc.Update(c.Request.Context(), materialID, fields, cover)
	if err != nil {
		respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"study": m})
}

func (h *StudyHandler) DeleteStudy(c *gin.Context) {
	var req struct {
		MaterialID string `json:"materialId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.Delete(c.Request.Context(), req.MaterialID); err != nil {
		respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "study material deleted"})
}

// PlaybackStudy returns a short-lived media URL for users holding an
// approved, unexpired entitlement.
func (h *StudyHandler) PlaybackStudy(c *gin.Context) {
	var req struct {
		MaterialID string `json:"materialId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := middleware.ClaimsFrom(c)
	url, err := h.svc.PlaybackURL(c.Request.Context(), claims.UserID, req.MaterialID)
	if err != nil {
		respondStudyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func respondStudyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, study.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, study.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
