package users

import (
	"context"
	"sync"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

// MemoryRepository is an in-memory UserRepository for tests and local
// development.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*models.User)}
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	r.users[u.UserID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *copyUser(u))
	}
	return out, nil
}

func (r *MemoryRepository) UpdateProfile(ctx context.Context, userID string, fields map[string]interface{}) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	for k, v := range fields {
		s, _ := v.(string)
		switch k {
		case "name":
			u.Name = s
		case "phone":
			u.Phone = s
		case "address":
			u.Address = s
		}
	}
	u.UpdatedAt = time.Now().UTC()
	return copyUser(u), nil
}

func (r *MemoryRepository) SetPassword(ctx context.Context, userID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Password = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) SetVerified(ctx context.Context, userID string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Verified = verified
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryRepository) ReplaceEntitlements(ctx context.Context, userID string, entitlements []models.Entitlement, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.MyEntitlements = append([]models.Entitlement(nil), entitlements...)
	if alert != nil {
		u.Alerts = append(u.Alerts, *alert)
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.MyEntitlements = append([]models.Entitlement(nil), u.MyEntitlements...)
	cp.Alerts = append([]models.Alert(nil), u.Alerts...)
	return &cp
}
