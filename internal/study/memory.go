package study

import (
	"context"
	"sync"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]*models.StudyMaterial
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]*models.StudyMaterial)}
}

func (r *MemoryRepository) Create(ctx context.Context, m *models.StudyMaterial) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	cp := *m
	r.items[m.MaterialID] = &cp
	r.order = append(r.order, m.MaterialID)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.items[materialID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) GetMany(ctx context.Context, materialIDs []string) ([]models.StudyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StudyMaterial, 0, len(materialIDs))
	for _, id := range materialIDs {
		if m, ok := r.items[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.StudyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.StudyMaterial, 0, len(r.order))
	// newest first, matching the Mongo sort
	for i := len(r.order) - 1; i >= 0; i-- {
		if m, ok := r.items[r.order[i]]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, materialID string, fields map[string]interface{}) (*models.StudyMaterial, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.items[materialID]
	if !ok {
		return nil, nil
	}
	for k, v := range fields {
		switch k {
		case "title":
			m.Title, _ = v.(string)
		case "description":
			m.Description, _ = v.(string)
		case "imageUrl":
			m.ImageURL, _ = v.(string)
		case "videoUrl":
			m.VideoURL, _ = v.(string)
		case "videoKey":
			m.VideoKey, _ = v.(string)
		case "link":
			m.Link, _ = v.(string)
		case "public":
			m.Public, _ = v.(bool)
		case "tags":
			m.Tags, _ = v.([]string)
		}
	}
	m.UpdatedAt = time.Now().UTC()
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, materialID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[materialID]; !ok {
		return ErrNotFound
	}
	delete(r.items, materialID)
	return nil
}
