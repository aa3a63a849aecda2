// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	projectstore "github.com/dalemusser/capstone/internal/app/store/projects"
	"github.com/dalemusser/capstone/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// ProjectExpiryJob removes rejected proposals older than retention.
// This is a backup for when MongoDB's TTL monitor is delayed or disabled.
func ProjectExpiryJob(projects *projectstore.Store, audit *auditlog.Logger, logger *zap.Logger, retention, interval time.Duration) Job {
	return Job{
		Name:       "project-expiry",
		Interval:   interval,
		RunOnStart: true,
		Run: func(ctx context.Context) error {
			count, err := projects.DeleteRejectedBefore(ctx, time.Now().UTC().Add(-retention))
			if err != nil {
				return err
			}
			if count > 0 {
				audit.ProjectsExpired(ctx, count)
				logger.Info("removed expired project proposals",
					zap.Int64("count", count),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}
