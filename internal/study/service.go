package study

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/snmusic/snmusic/backend/go-services/internal/cache"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/storage"
	"github.com/snmusic/snmusic/backend/go-services/internal/watermark"
	"github.com/snmusic/snmusic/backend/go-services/pkg/logger"
	"github.com/snmusic/snmusic/backend/go-services/pkg/metrics"
)

const (
	cacheKeyAll    = "study:all"
	cacheKeyPublic = "study:public"

	// playback links are short-lived; the client asks again when one lapses
	playbackURLTTL = 4 * time.Hour
)

// AccessChecker gates playback: only users with an approved, unexpired
// entitlement get a media URL. Satisfied by users.Service.
type AccessChecker interface {
	HasActiveAccess(ctx context.Context, userID, materialID string, now time.Time) (bool, error)
}

// Service owns the study-material catalog: CRUD, search, cover watermarking,
// media upload and entitlement-gated playback URLs.
type Service struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	store    storage.MediaStore
	stamper  *watermark.Stamper
	access   AccessChecker
}

func NewService(repo Repository, c cache.Cache, cacheTTL time.Duration, store storage.MediaStore, stamper *watermark.Stamper, access AccessChecker) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, store: store, stamper: stamper, access: access}
}

// Create registers a new material. The cover image is watermarked and
// uploaded before the document is written; Tags are normalized to lower case.
func (s *Service) Create(ctx context.Context, m *models.StudyMaterial, cover io.Reader) (*models.StudyMaterial, error) {
	if m.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if m.MaterialID == "" {
		m.MaterialID = uuid.NewString()
	}
	m.Tags = normalizeTags(m.Tags)

	if cover != nil {
		url, err := s.uploadCover(ctx, m.MaterialID, cover)
		if err != nil {
			return nil, err
		}
		m.ImageURL = url
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return m, nil
}

// UploadVideo stores the lesson video and records its object key. The key
// never leaves the server; playback goes through presigned URLs.
func (s *Service) UploadVideo(ctx context.Context, materialID string, video io.Reader, size int64, contentType string) (*models.StudyMaterial, error) {
	m, err := s.mustGet(ctx, materialID)
	if err != nil {
		return nil, err
	}
	key := "videos/" + m.MaterialID
	if err := s.store.Upload(ctx, key, video, size, contentType); err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	updated, err := s.repo.Update(ctx, materialID, map[string]interface{}{"videoKey": key})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Get returns one material by id.
func (s *Service) Get(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	return s.mustGet(ctx, materialID)
}

// GetMany returns the materials for a set of ids; unknown ids are skipped.
func (s *Service) GetMany(ctx context.Context, materialIDs []string) ([]models.StudyMaterial, error) {
	return s.repo.GetMany(ctx, materialIDs)
}

// List returns the whole catalog, newest first, served from cache when fresh.
func (s *Service) List(ctx context.Context) ([]models.StudyMaterial, error) {
	return s.cachedList(ctx, cacheKeyAll, func(all []models.StudyMaterial) []models.StudyMaterial {
		return all
	})
}

// ListPublic returns only materials that grant access without approval.
func (s *Service) ListPublic(ctx context.Context) ([]models.StudyMaterial, error) {
	return s.cachedList(ctx, cacheKeyPublic, func(all []models.StudyMaterial) []models.StudyMaterial {
		out := []models.StudyMaterial{}
		for _, m := range all {
			if m.Public {
				out = append(out, m)
			}
		}
		return out
	})
}

// Search filters the catalog by keyword (title/description substring,
// case-insensitive) and tags (every given tag must be present). Empty
// criteria match everything.
func (s *Service) Search(ctx context.Context, keyword string, tags []string) ([]models.StudyMaterial, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	tags = normalizeTags(tags)

	out := []models.StudyMaterial{}
	for _, m := range all {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(m.Title), keyword) &&
			!strings.Contains(strings.ToLower(m.Description), keyword) {
			continue
		}
		if !hasAllTags(m.Tags, tags) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Update applies the editable fields and refreshes the cover if one is given.
func (s *Service) Update(ctx context.Context, materialID string, fields map[string]interface{}, cover io.Reader) (*models.StudyMaterial, error) {
	if _, err := s.mustGet(ctx, materialID); err != nil {
		return nil, err
	}
	if cover != nil {
		url, err := s.uploadCover(ctx, materialID, cover)
		if err != nil {
			return nil, err
		}
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["imageUrl"] = url
	}
	if tags, ok := fields["tags"].([]string); ok {
		fields["tags"] = normalizeTags(tags)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("no updatable fields provided")
	}
	updated, err := s.repo.Update(ctx, materialID, fields)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes the material and its stored media.
func (s *Service) Delete(ctx context.Context, materialID string) error {
	m, err := s.mustGet(ctx, materialID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, materialID); err != nil {
		return err
	}
	if m.VideoKey != "" {
		if err := s.store.Remove(ctx, m.VideoKey); err != nil {
			logger.Warnf("failed to remove video for %s: %v", materialID, err)
		}
	}
	if err := s.store.Remove(ctx, "covers/"+materialID); err != nil {
		logger.Warnf("failed to remove cover for %s: %v", materialID, err)
	}
	s.invalidate(ctx)
	return nil
}

// PlaybackURL returns a presigned media URL if the user holds an approved,
// unexpired entitlement for the material (or the material is public).
func (s *Service) PlaybackURL(ctx context.Context, userID, materialID string) (string, error) {
	m, err := s.mustGet(ctx, materialID)
	if err != nil {
		return "", err
	}
	if m.VideoKey == "" {
		return "", fmt.Errorf("material %s has no video", materialID)
	}
	ok, err := s.access.HasActiveAccess(ctx, userID, materialID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrAccessDenied
	}
	return s.store.PlaybackURL(ctx, m.VideoKey, playbackURLTTL)
}

func (s *Service) mustGet(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	if materialID == "" {
		return nil, fmt.Errorf("material id is required")
	}
	m, err := s.repo.Get(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotFound
	}
	return m, nil
}

func (s *Service) uploadCover(ctx context.Context, materialID string, cover io.Reader) (string, error) {
	stamped, err := s.stamper.Apply(cover)
	if err != nil {
		return "", err
	}
	key := "covers/" + materialID
	if err := s.store.Upload(ctx, key, bytes.NewReader(stamped), int64(len(stamped)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload cover: %w", err)
	}
	// cover URLs are long-lived; clients re-fetch the listing before expiry
	return s.store.PlaybackURL(ctx, key, 7*24*time.Hour)
}

func (s *Service) cachedList(ctx context.Context, key string, filter func([]models.StudyMaterial) []models.StudyMaterial) ([]models.StudyMaterial, error) {
	if b, err := s.cache.Get(ctx, key); err == nil && b != nil {
		var out []models.StudyMaterial
		if err := json.Unmarshal(b, &out); err == nil {
			metrics.CacheHits.WithLabelValues(key).Inc()
			return out, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(key).Inc()

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := filter(all)
	if b, err := json.Marshal(out); err == nil {
		if err := s.cache.Put(ctx, key, b, s.cacheTTL); err != nil {
			logger.Warnf("failed to cache %s: %v", key, err)
		}
	}
	return out, nil
}

func (s *Service) invalidate(ctx context.Context) {
	for _, key := range []string{cacheKeyAll, cacheKeyPublic} {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			logger.Warnf("failed to invalidate %s: %v", key, err)
		}
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
