package study

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/snmusic/snmusic/backend/go-services/internal/cache"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/storage"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/internal/watermark"
)

func newTestStudy(t *testing.T) (*Service, *storage.MemoryStore, *users.MemoryRepository) {
	t.Helper()
	userRepo := users.NewMemoryRepository()
	store := storage.NewMemoryStore()
	svc := NewService(NewMemoryRepository(), cache.NewMemory(), time.Hour,
		store, watermark.NewStamper("SN Music"), users.NewService(userRepo))
	return svc, store, userRepo
}

func coverPNG(t *testing.T) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: 180, G: 180, B: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

func TestCreate_WatermarksAndStoresCover(t *testing.T) {
	svc, store, _ := newTestStudy(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &models.StudyMaterial{Title: "Raga Yaman Basics", Tags: []string{" Raga ", "raga", "Beginner"}}, coverPNG(t))
	require.NoError(t, err)
	require.NotEmpty(t, m.MaterialID)
	require.True(t, store.Has("covers/"+m.MaterialID))
	require.NotEmpty(t, m.ImageURL)
	require.Equal(t, []string{"raga", "beginner"}, m.Tags)
}

func TestCreate_RequiresTitle(t *testing.T) {
	svc, _, _ := newTestStudy(t)
	_, err := svc.Create(context.Background(), &models.StudyMaterial{}, nil)
	require.Error(t, err)
}

func TestListPublic(t *testing.T) {
	svc, _, _ := newTestStudy(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.StudyMaterial{Title: "Open Lesson", Public: true}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, &models.StudyMaterial{Title: "Gated Lesson"}, nil)
	require.NoError(t, err)

	pub, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, pub, 1)
	require.Equal(t, "Open Lesson", pub[0].Title)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestSearch(t *testing.T) {
	svc, _, _ := newTestStudy(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &models.StudyMaterial{Title: "Raga Yaman Basics", Description: "evening raga", Tags: []string{"raga", "beginner"}}, nil)
	require.NoError(t, err)
	_, err = svc.Create(ctx, &models.StudyMaterial{Title: "Taal Practice", Description: "rhythm drills", Tags: []string{"taal"}}, nil)
	require.NoError(t, err)

	got, err := svc.Search(ctx, "yaman", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Raga Yaman Basics", got[0].Title)

	// keyword matches description too
	got, err = svc.Search(ctx, "RHYTHM", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "Taal Practice", got[0].Title)

	got, err = svc.Search(ctx, "", []string{"raga", "beginner"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = svc.Search(ctx, "", []string{"raga", "advanced"})
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = svc.Search(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestUpdate_InvalidatesListCache(t *testing.T) {
	svc, _, _ := newTestStudy(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &models.StudyMaterial{Title: "Old Title"}, nil)
	require.NoError(t, err)

	// prime the cache
	_, err = svc.List(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, m.MaterialID, map[string]interface{}{"title": "New Title"}, nil)
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "New Title", all[0].Title)
}

func TestDelete_RemovesMedia(t *testing.T) {
	svc, store, _ := newTestStudy(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &models.StudyMaterial{Title: "Lesson"}, coverPNG(t))
	require.NoError(t, err)
	_, err = svc.UploadVideo(ctx, m.MaterialID, strings.NewReader("fake video bytes"), 16, "video/mp4")
	require.NoError(t, err)
	require.True(t, store.Has("videos/"+m.MaterialID))

	require.NoError(t, svc.Delete(ctx, m.MaterialID))
	require.False(t, store.Has("videos/"+m.MaterialID))
	require.False(t, store.Has("covers/"+m.MaterialID))

	_, err = svc.Get(ctx, m.MaterialID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPlaybackURL_GatedByEntitlement(t *testing.T) {
	svc, _, userRepo := newTestStudy(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, &models.StudyMaterial{Title: "Gated Lesson"}, nil)
	require.NoError(t, err)
	_, err = svc.UploadVideo(ctx, m.MaterialID, strings.NewReader("fake video bytes"), 16, "video/mp4")
	require.NoError(t, err)

	expiry := time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	require.NoError(t, userRepo.Create(ctx, &models.User{
		UserID: "u1",
		Email:  "a@b.c",
		MyEntitlements: []models.Entitlement{
			{MaterialID: m.MaterialID, Approved: true, StartDate: time.Now().UTC().Format(time.RFC3339), ExpiryDate: expiry},
		},
	}))
	require.NoError(t, userRepo.Create(ctx, &models.User{UserID: "u2", Email: "d@e.f"}))

	url, err := svc.PlaybackURL(ctx, "u1", m.MaterialID)
	require.NoError(t, err)
	require.Equal(t, "memory://videos/"+m.MaterialID, url)

	_, err = svc.PlaybackURL(ctx, "u2", m.MaterialID)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestGetMany_SkipsUnknownIDs(t *testing.T) {
	svc, _, _ := newTestStudy(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &models.StudyMaterial{Title: "Lesson A"}, nil)
	require.NoError(t, err)
	b, err := svc.Create(ctx, &models.StudyMaterial{Title: "Lesson B"}, nil)
	require.NoError(t, err)

	got, err := svc.GetMany(ctx, []string{a.MaterialID, "missing", b.MaterialID})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = svc.GetMany(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
}
