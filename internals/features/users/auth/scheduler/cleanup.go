package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	authRepo "srms_backend/internals/features/users/auth/repository"
)

const blacklistCleanupSchedule = "0 4 * * *"

// RegisterBlacklistCleanup purges revoked tokens ttlDays after they expired.
func RegisterBlacklistCleanup(c *cron.Cron, db *gorm.DB, ttlDays int) error {
	if ttlDays <= 0 {
		ttlDays = 7
	}
	_, err := c.AddFunc(blacklistCleanupSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		RunBlacklistCleanup(ctx, db, time.Now().Add(-time.Duration(ttlDays)*24*time.Hour))
	})
	if err != nil {
		return err
	}
	log.Printf("[CLEANUP] token_blacklist cleanup scheduled %q ttl=%dd", blacklistCleanupSchedule, ttlDays)
	return nil
}

func RunBlacklistCleanup(ctx context.Context, db *gorm.DB, cutoff time.Time) int64 {
	n, err := authRepo.CleanupExpiredBlacklist(ctx, db, cutoff)
	switch {
	case err != nil:
		log.Printf("[CLEANUP ERROR] token_blacklist: %v", err)
	case n > 0:
		log.Printf("[CLEANUP] %d expired tokens removed", n)
	default:
		log.Println("[CLEANUP] no expired tokens")
	}
	return n
}
