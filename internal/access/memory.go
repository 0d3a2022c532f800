package access

import (
	"context"
	"sync"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

// MemoryRepository is an in-memory Repository used for unit tests and local
// development without a MongoDB deployment. Commits mutate all state under
// one lock, mirroring the all-or-nothing contract of the Mongo transaction.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]*models.User
	study    map[string]*models.StudyMaterial
	pending  map[string]*models.PendingRequest // by requestId
	byPair   map[string]string                 // userId+"/"+materialId -> requestId
	failNext error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   make(map[string]*models.User),
		study:   make(map[string]*models.StudyMaterial),
		pending: make(map[string]*models.PendingRequest),
		byPair:  make(map[string]string),
	}
}

// SeedUser and SeedMaterial install fixtures.
func (r *MemoryRepository) SeedUser(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.UserID] = u
}

func (r *MemoryRepository) SeedMaterial(m *models.StudyMaterial) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.study[m.MaterialID] = m
}

// FailNextCommit makes the next Commit* call return err without applying
// any writes, simulating a failed batch.
func (r *MemoryRepository) FailNextCommit(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = err
}

func (r *MemoryRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	cp.MyEntitlements = append([]models.Entitlement(nil), u.MyEntitlements...)
	cp.Alerts = append([]models.Alert(nil), u.Alerts...)
	return &cp, nil
}

func (r *MemoryRepository) GetMaterial(ctx context.Context, materialID string) (*models.StudyMaterial, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.study[materialID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *MemoryRepository) GetPendingRequest(ctx context.Context, requestID string) (*models.PendingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pending[requestID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) FindPendingRequest(ctx context.Context, userID, materialID string) (*models.PendingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPair[userID+"/"+materialID]
	if !ok {
		return nil, nil
	}
	cp := *r.pending[id]
	return &cp, nil
}

func (r *MemoryRepository) ListPendingRequests(ctx context.Context) ([]models.PendingRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.PendingRequest, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, *p)
	}
	return out, nil
}

func (r *MemoryRepository) CommitGrant(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	return r.appendUserState(userID, ent, alert)
}

func (r *MemoryRepository) CommitRequest(ctx context.Context, userID string, ent models.Entitlement, alert models.Alert, req *models.PendingRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	pair := req.UserID + "/" + req.MaterialID
	if _, exists := r.byPair[pair]; exists {
		return ErrDuplicateRequest
	}
	if err := r.appendUserState(userID, ent, alert); err != nil {
		return err
	}
	cp := *req
	r.pending[cp.RequestID] = &cp
	r.byPair[pair] = cp.RequestID
	return nil
}

func (r *MemoryRepository) CommitResolution(ctx context.Context, userID string, entitlements []models.Entitlement, alert models.Alert, requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return err
	}
	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	p, ok := r.pending[requestID]
	if !ok {
		return ErrRequestNotFound
	}
	u.MyEntitlements = append([]models.Entitlement(nil), entitlements...)
	u.Alerts = append(u.Alerts, alert)
	delete(r.byPair, p.UserID+"/"+p.MaterialID)
	delete(r.pending, requestID)
	return nil
}

func (r *MemoryRepository) takeFailure() error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	return nil
}

func (r *MemoryRepository) appendUserState(userID string, ent models.Entitlement, alert models.Alert) error {
	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.MyEntitlements = append(u.MyEntitlements, ent)
	u.Alerts = append(u.Alerts, alert)
	return nil
}
