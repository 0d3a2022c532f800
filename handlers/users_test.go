package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/pkg/middleware"
)

func newUserRouter(t *testing.T) (*gin.Engine, *users.MemoryRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := users.NewMemoryRepository()
	r := gin.New()
	api := r.Group("/api/v1")
	NewUserHandler(users.NewService(repo)).Register(api, middleware.AuthMiddleware(handlerTestSecret))
	return r, repo
}

func seedUserFixtures(t *testing.T, repo *users.MemoryRepository) {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &models.User{
		UserID: "u1", Name: "Asha", Email: "asha@example.com",
		MyEntitlements: []models.Entitlement{
			{MaterialID: "m1", Title: "Approved Lesson", Approved: true},
			{MaterialID: "m2", Title: "Pending Lesson", Approved: false},
		},
		Alerts: []models.Alert{{Kind: models.AlertRequestSent, Time: "2026-01-01T10:00:00Z"}},
	}))
}

func TestReadUser_SelfOnly(t *testing.T) {
	r, repo := newUserRouter(t)
	seedUserFixtures(t, repo)
	require.NoError(t, repo.Create(context.Background(), &models.User{UserID: "u2", Name: "Ravi", Email: "ravi@example.com"}))

	// a non-admin asking for someone else still reads themself
	w := postJSON(t, r, "/api/v1/user/read-user", bearerFor(t, "u1", false), gin.H{"userId": "u2"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "asha@example.com")
	require.NotContains(t, w.Body.String(), "ravi@example.com")

	// an admin can target any user
	w = postJSON(t, r, "/api/v1/user/read-user", bearerFor(t, "admin-x", true), gin.H{"userId": "u2"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ravi@example.com")
}

func TestReadAllUsers_AdminOnly(t *testing.T) {
	r, repo := newUserRouter(t)
	seedUserFixtures(t, repo)

	req := httptest.NewRequest("GET", "/api/v1/user/read-all-user", nil)
	req.Header.Set("Authorization", bearerFor(t, "u1", false))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("GET", "/api/v1/user/read-all-user", nil)
	req.Header.Set("Authorization", bearerFor(t, "admin", true))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "asha@example.com")
}

func TestReadUserStudy_Filters(t *testing.T) {
	r, repo := newUserRouter(t)
	seedUserFixtures(t, repo)
	bearer := bearerFor(t, "u1", false)

	w := postJSON(t, r, "/api/v1/user/read-user-study", bearer, gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Approved Lesson")
	require.NotContains(t, w.Body.String(), "Pending Lesson")

	w = postJSON(t, r, "/api/v1/user/read-user-unapproved-study", bearer, gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Pending Lesson")
	require.NotContains(t, w.Body.String(), "Approved Lesson")

	w = postJSON(t, r, "/api/v1/user/read-single-user-study", bearer, gin.H{"materialId": "m1"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Approved Lesson")

	w = postJSON(t, r, "/api/v1/user/read-single-user-study", bearer, gin.H{"materialId": "nope"})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestReadIdentityUser(t *testing.T) {
	r, repo := newUserRouter(t)
	seedUserFixtures(t, repo)

	w := postJSON(t, r, "/api/v1/user/read-identity-user", bearerFor(t, "admin", true), gin.H{"query": "asha"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "u1")
}
