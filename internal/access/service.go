package access

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/snmusic/snmusic/backend/go-services/internal/cache"
	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/pkg/logger"
	"github.com/snmusic/snmusic/backend/go-services/pkg/metrics"
)

// pendingCacheKey caches the admin's full pending-request listing; every
// workflow mutation invalidates it.
const pendingCacheKey = "notifications:all"

// Service is the notification workflow engine. It owns the cross-document
// invariants: no duplicate requests, atomic dual-document updates, expiry
// computation, and idempotent resolution. All mutation goes through the
// repository's batch commits, never through plain single-document updates.
type Service struct {
	repo     Repository
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(repo Repository, c cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL, now: time.Now}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolution is the result of resolving a pending request: the entitlement
// as it stood before the resolution and the user's full list afterwards.
type Resolution struct {
	Prior   *models.Entitlement  `json:"priorEntitlement,omitempty"`
	Updated []models.Entitlement `json:"updatedEntitlements"`
}

// RequestAccess turns a user's request for a study material into either an
// immediate grant (public material) or a pending entitlement plus an admin
// queue item, committed atomically. Returns the notification payload.
func (s *Service) RequestAccess(ctx context.Context, userID, materialID string, validityMonths *int) (*models.PendingRequest, error) {
	if userID == "" || materialID == "" {
		return nil, fmt.Errorf("user info and study material info are required")
	}

	// Dedup before any side effects. Two concurrent requests can both pass
	// this check; the unique pending index catches the loser at commit.
	existing, err := s.repo.FindPendingRequest(ctx, userID, materialID)
	if err != nil {
		metrics.AccessRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if existing != nil {
		metrics.AccessRequests.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateRequest
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		metrics.AccessRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil {
		metrics.AccessRequests.WithLabelValues("rejected").Inc()
		return nil, ErrUserNotFound
	}

	material, err := s.repo.GetMaterial(ctx, materialID)
	if err != nil {
		metrics.AccessRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	if material == nil {
		metrics.AccessRequests.WithLabelValues("rejected").Inc()
		return nil, ErrMaterialNotFound
	}

	// At most one entitlement per (user, material), approved or not.
	if _, ok := user.EntitlementFor(materialID); ok {
		metrics.AccessRequests.WithLabelValues("rejected").Inc()
		return nil, ErrAlreadyRequested
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)
	notification := &models.PendingRequest{
		RequestID:      uuid.NewString(),
		UserID:         user.UserID,
		UserName:       user.Name,
		UserEmail:      user.Email,
		UserAllowed:    user.Allowed,
		UserVerified:   user.Verified,
		MaterialID:     material.MaterialID,
		Title:          material.Title,
		Description:    material.Description,
		ImageURL:       material.ImageURL,
		VideoURL:       material.VideoURL,
		Link:           material.Link,
		Public:         material.Public,
		ValidityMonths: validityMonths,
		Date:           nowStr,
	}

	ent := models.Entitlement{
		UserID:         user.UserID,
		MaterialID:     material.MaterialID,
		Title:          material.Title,
		Description:    material.Description,
		ImageURL:       material.ImageURL,
		VideoURL:       material.VideoURL,
		Link:           material.Link,
		Public:         material.Public,
		RequestedAt:    nowStr,
		ValidityMonths: validityMonths,
	}

	if material.Public {
		// Fast path: grant immediately, no admin queue item.
		start, expiry := validityWindow(now, validityMonths)
		ent.Approved = true
		ent.StartDate = start
		ent.ExpiryDate = expiry

		notification.Message = "Access granted"
		notification.Approved = true
		notification.StartDate = start
		notification.ExpiryDate = expiry

		alert := models.Alert{
			Kind:    models.AlertAccessAccepted,
			Heading: "Access Accepted",
			Text:    fmt.Sprintf("You have been given access for %s", material.Title),
			Time:    nowStr,
		}
		if err := s.repo.CommitGrant(ctx, user.UserID, ent, alert); err != nil {
			metrics.AccessRequests.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.AccessRequests.WithLabelValues("granted").Inc()
	} else {
		notification.Message = "Access requested"
		alert := models.Alert{
			Kind:    models.AlertRequestSent,
			Heading: "Request Sent",
			Text:    fmt.Sprintf("You have requested access for %s", material.Title),
			Time:    nowStr,
		}
		if err := s.repo.CommitRequest(ctx, user.UserID, ent, alert, notification); err != nil {
			if errors.Is(err, ErrDuplicateRequest) {
				metrics.AccessRequests.WithLabelValues("duplicate").Inc()
			} else {
				metrics.AccessRequests.WithLabelValues("error").Inc()
			}
			return nil, err
		}
		metrics.AccessRequests.WithLabelValues("requested").Inc()
	}

	s.invalidatePending(ctx)
	return notification, nil
}

// ResolveRequest applies an admin's approve/deny decision. Approval rewrites
// the embedded entitlement with computed dates; denial removes it entirely.
// Either way the pending request is deleted in the same batch, which makes a
// replayed resolution fail with ErrRequestNotFound instead of double
// applying.
func (s *Service) ResolveRequest(ctx context.Context, requestID string, approve bool) (*Resolution, error) {
	if requestID == "" {
		return nil, fmt.Errorf("notification id is required")
	}

	pending, err := s.repo.GetPendingRequest(ctx, requestID)
	if err != nil {
		metrics.AccessResolutions.WithLabelValues("error").Inc()
		return nil, err
	}
	if pending == nil {
		metrics.AccessResolutions.WithLabelValues("missing").Inc()
		return nil, ErrRequestNotFound
	}

	user, err := s.repo.GetUser(ctx, pending.UserID)
	if err != nil {
		metrics.AccessResolutions.WithLabelValues("error").Inc()
		return nil, err
	}
	if user == nil {
		metrics.AccessResolutions.WithLabelValues("error").Inc()
		return nil, ErrUserNotFound
	}

	var prior *models.Entitlement
	if e, ok := user.EntitlementFor(pending.MaterialID); ok {
		cp := e
		prior = &cp
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	var updated []models.Entitlement
	var alert models.Alert
	if approve {
		start, expiry := validityWindow(now, pending.ValidityMonths)
		replaced := false
		for _, e := range user.MyEntitlements {
			if e.MaterialID == pending.MaterialID {
				e.Approved = true
				e.StartDate = start
				e.ExpiryDate = expiry
				replaced = true
			}
			updated = append(updated, e)
		}
		if !replaced {
			// The embedded entitlement is created in the same batch as the
			// pending request, so normally it is always present. Rebuild it
			// from the pending snapshot if it was lost out of band.
			updated = append(updated, models.Entitlement{
				UserID:         pending.UserID,
				MaterialID:     pending.MaterialID,
				Title:          pending.Title,
				Description:    pending.Description,
				ImageURL:       pending.ImageURL,
				VideoURL:       pending.VideoURL,
				Link:           pending.Link,
				Public:         pending.Public,
				Approved:       true,
				RequestedAt:    pending.Date,
				StartDate:      start,
				ExpiryDate:     expiry,
				ValidityMonths: pending.ValidityMonths,
			})
		}
		alert = models.Alert{
			Kind:    models.AlertAccessAccepted,
			Heading: "Access Accepted",
			Text:    fmt.Sprintf("You have been given access for %s", pending.Title),
			Time:    nowStr,
		}
	} else {
		updated = []models.Entitlement{}
		for _, e := range user.MyEntitlements {
			if e.MaterialID != pending.MaterialID {
				updated = append(updated, e)
			}
		}
		alert = models.Alert{
			Kind:    models.AlertAccessDenied,
			Heading: "Access Denied",
			Text:    fmt.Sprintf("Your request has been denied for %s", pending.Title),
			Time:    nowStr,
		}
	}

	if err := s.repo.CommitResolution(ctx, user.UserID, updated, alert, requestID); err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			metrics.AccessResolutions.WithLabelValues("missing").Inc()
		} else {
			metrics.AccessResolutions.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if approve {
		metrics.AccessResolutions.WithLabelValues("approved").Inc()
	} else {
		metrics.AccessResolutions.WithLabelValues("denied").Inc()
	}

	s.invalidatePending(ctx)
	return &Resolution{Prior: prior, Updated: updated}, nil
}

// ListNotifications returns the admin's pending-request queue, served from
// the cache when fresh.
func (s *Service) ListNotifications(ctx context.Context) ([]models.PendingRequest, error) {
	if b, err := s.cache.Get(ctx, pendingCacheKey); err == nil && b != nil {
		var out []models.PendingRequest
		if err := json.Unmarshal(b, &out); err == nil {
			metrics.CacheHits.WithLabelValues(pendingCacheKey).Inc()
			return out, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(pendingCacheKey).Inc()

	out, err := s.repo.ListPendingRequests(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(out); err == nil {
		if err := s.cache.Put(ctx, pendingCacheKey, b, s.cacheTTL); err != nil {
			logger.Warnf("failed to cache pending requests: %v", err)
		}
	}
	return out, nil
}

// GetNotification reads one pending request by id.
func (s *Service) GetNotification(ctx context.Context, requestID string) (*models.PendingRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("notification id is required")
	}
	p, err := s.repo.GetPendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrRequestNotFound
	}
	return p, nil
}

func (s *Service) invalidatePending(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, pendingCacheKey); err != nil {
		logger.Warnf("failed to invalidate pending-request cache: %v", err)
	}
}
