package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidUpdate = errors.New("no updatable fields provided")
	ErrNoEntitlement = errors.New("no entitlement for material")
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	return s.repo.List(ctx)
}

// Search matches users whose name, email or id contains the query,
// case-insensitive. Admin identity lookup; empty query returns everyone.
func (s *Service) Search(ctx context.Context, query string) ([]models.User, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}
	out := []models.User{}
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Name), query) ||
			strings.Contains(strings.ToLower(u.Email), query) ||
			strings.Contains(strings.ToLower(u.UserID), query) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Entitlement returns the user's entitlement for one material.
func (s *Service) Entitlement(ctx context.Context, userID, materialID string) (*models.Entitlement, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	e, ok := u.EntitlementFor(materialID)
	if !ok {
		return nil, ErrNoEntitlement
	}
	return &e, nil
}

// UpdateProfile applies the caller-editable profile fields. Password,
// verification and entitlements go through their own paths.
func (s *Service) UpdateProfile(ctx context.Context, userID, name, phone, address string) (*models.User, error) {
	fields := map[string]interface{}{}
	if name != "" {
		fields["name"] = name
	}
	if phone != "" {
		fields["phone"] = phone
	}
	if address != "" {
		fields["address"] = address
	}
	if len(fields) == 0 {
		return nil, ErrInvalidUpdate
	}
	u, err := s.repo.UpdateProfile(ctx, userID, fields)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// Alerts returns the user's notice board, newest first.
func (s *Service) Alerts(ctx context.Context, userID string) ([]models.Alert, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := append([]models.Alert(nil), u.Alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		ti, ei := time.Parse(time.RFC3339, out[i].Time)
		tj, ej := time.Parse(time.RFC3339, out[j].Time)
		if ei != nil || ej != nil {
			return i < j
		}
		return ti.After(tj)
	})
	return out, nil
}

// Entitlements returns the user's entitlement list, optionally filtered to a
// lifecycle state ("pending" or "approved"; empty returns everything).
func (s *Service) Entitlements(ctx context.Context, userID string, status models.EntitlementStatus) ([]models.Entitlement, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return u.MyEntitlements, nil
	}
	out := []models.Entitlement{}
	for _, e := range u.MyEntitlements {
		if e.Status() == status {
			out = append(out, e)
		}
	}
	return out, nil
}

// HasActiveAccess reports whether the user currently holds an approved,
// unexpired entitlement for the material. Gatekeeper for media playback.
func (s *Service) HasActiveAccess(ctx context.Context, userID, materialID string, now time.Time) (bool, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	e, ok := u.EntitlementFor(materialID)
	if !ok || !e.Approved {
		return false, nil
	}
	return !e.ExpiredAt(now), nil
}
