// file: internals/features/certificates/records/scheduler/orphan_reaper.go
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	model "srms_backend/internals/features/certificates/records/model"
	"srms_backend/internals/features/certificates/records/repository"
	"srms_backend/internals/helpers/blob"
	"srms_backend/internals/helpers/metrics"
)

type OrphanStore interface {
	ListOrphansBefore(ctx context.Context, cutoff time.Time, limit int) ([]model.OrphanedDocumentModel, error)
	HasRecord(ctx context.Context, studentID, recordID string) (bool, error)
	ReapOrphan(ctx context.Context, id uuid.UUID, cutoff time.Time, fn func(o *model.OrphanedDocumentModel, adopted bool) error) error
}

type ReaperConfig struct {
	Schedule    string
	GracePeriod time.Duration
	BatchSize   int
	DryRun      bool
}

type ReapStats struct {
	Scanned int
	Deleted int
	Adopted int // record appeared after all; object kept
	Failed  int
}

// OrphanReaper deletes objects left behind by failed issuances once they are
// older than the grace period. An object whose record exists by then belongs
// to a successful retry and is kept.
type OrphanReaper struct {
	store OrphanStore
	blobs blob.Store
	cfg   ReaperConfig
	now   func() time.Time
}

func NewOrphanReaper(store OrphanStore, blobs blob.Store, cfg ReaperConfig) *OrphanReaper {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 24 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "30 3 * * *"
	}
	return &OrphanReaper{store: store, blobs: blobs, cfg: cfg, now: time.Now}
}

// Register adds the reaper to c. The caller owns c.Start/Stop.
func (r *OrphanReaper) Register(c *cron.Cron) error {
	_, err := c.AddFunc(r.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := r.RunOnce(ctx); err != nil {
			log.Printf("[REAPER] ❌ run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	log.Printf("[REAPER] started schedule=%q grace=%s dryRun=%v", r.cfg.Schedule, r.cfg.GracePeriod, r.cfg.DryRun)
	return nil
}

// RunOnce processes one batch of orphans past the grace period.
func (r *OrphanReaper) RunOnce(ctx context.Context) (ReapStats, error) {
	var st ReapStats
	cutoff := r.now().Add(-r.cfg.GracePeriod)

	rows, err := r.store.ListOrphansBefore(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return st, err
	}
	st.Scanned = len(rows)
	if len(rows) == 0 {
		log.Printf("[REAPER] nothing to delete (cutoff=%s)", cutoff.Format(time.RFC3339))
		return st, nil
	}

	for _, o := range rows {
		if r.cfg.DryRun {
			exists, err := r.store.HasRecord(ctx, o.OrphanStudentID, o.OrphanRecordID)
			switch {
			case err != nil:
				log.Printf("[REAPER] check record=%s: %v", o.OrphanRecordID, err)
				st.Failed++
			case exists:
				log.Printf("[REAPER] DRY-RUN would keep %s (record exists)", o.OrphanObjectKey)
			default:
				log.Printf("[REAPER] DRY-RUN would delete %s (%s)", o.OrphanObjectKey, o.OrphanReason)
			}
			continue
		}

		// The row stays locked until the object is gone, so an issuance
		// retrying the same keys waits instead of losing its upload.
		var deleted, adopted bool
		err := r.store.ReapOrphan(ctx, o.OrphanID, cutoff, func(row *model.OrphanedDocumentModel, exists bool) error {
			if exists {
				adopted = true
				return nil
			}
			if err := r.blobs.Delete(ctx, row.OrphanObjectKey); err != nil {
				return err
			}
			deleted = true
			return nil
		})
		switch {
		case errors.Is(err, repository.ErrOrphanGone):
			log.Printf("[REAPER] skip %s (claimed by a retry)", o.OrphanObjectKey)
		case err != nil:
			log.Printf("[REAPER] reap %s: %v", o.OrphanObjectKey, err)
			st.Failed++
		case adopted:
			st.Adopted++
		case deleted:
			st.Deleted++
			metrics.OrphansReaped.Inc()
		}
	}

	log.Printf("[REAPER] scanned=%d deleted=%d adopted=%d failed=%d", st.Scanned, st.Deleted, st.Adopted, st.Failed)
	return st, nil
}
