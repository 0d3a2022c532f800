package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/snmusic/snmusic/backend/go-services/internal/models"
	"github.com/snmusic/snmusic/backend/go-services/internal/users"
	"github.com/snmusic/snmusic/backend/go-services/pkg/logger"
)

// ExpirySweeper removes lapsed entitlements. An approved entitlement whose
// expiry date has passed is dropped from the user's list, with an expiry
// alert appended, mirroring how a denial clears state.
type ExpirySweeper struct {
	repo users.UserRepository
	now  func() time.Time
}

func NewExpirySweeper(repo users.UserRepository) *ExpirySweeper {
	return &ExpirySweeper{repo: repo, now: time.Now}
}

// WithClock overrides the sweeper clock. Test hook.
func (s *ExpirySweeper) WithClock(now func() time.Time) *ExpirySweeper {
	s.now = now
	return s
}

// Sweep scans all users once and strips expired entitlements. Returns the
// number of entitlements removed.
func (s *ExpirySweeper) Sweep(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	removed := 0
	for i := range all {
		u := &all[i]
		kept := make([]models.Entitlement, 0, len(u.MyEntitlements))
		var expired []models.Entitlement
		for _, e := range u.MyEntitlements {
			if e.ExpiredAt(now) {
				expired = append(expired, e)
				continue
			}
			kept = append(kept, e)
		}
		if len(expired) == 0 {
			continue
		}
		// one alert per lapsed entitlement; the list itself is idempotent
		// across these writes
		failed := false
		for _, e := range expired {
			alert := models.Alert{
				Kind:    models.AlertAccessExpired,
				Heading: "Access Expired",
				Text:    fmt.Sprintf("Your access for %s has expired", e.Title),
				Time:    now.Format(time.RFC3339),
			}
			if err := s.repo.ReplaceEntitlements(ctx, u.UserID, kept, &alert); err != nil {
				logger.Errorf("expiry sweep: failed to update user %s: %v", u.UserID, err)
				failed = true
				break
			}
		}
		if !failed {
			removed += len(expired)
		}
	}
	return removed, nil
}

// Schedule registers the sweep on the cron runner. The cron spec uses the
// standard 5-field format, e.g. "0 3 * * *" for 03:00 daily.
func (s *ExpirySweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		n, err := s.Sweep(ctx)
		if err != nil {
			logger.Errorf("expiry sweep failed: %v", err)
			return
		}
		if n > 0 {
			logger.Infof("expiry sweep removed %d lapsed entitlements", n)
		}
	})
}
