package invites

import (
	"time"

	"github.com/go-co-op/gocron/v2"
)

// The cache is rebuilt on every mutation but has no freshness guarantee in
// between; a background rebuild keeps it warm.
func RegisterCacheRefresher(scheduler gocron.Scheduler, c *Controller, every time.Duration) {
	_, _ = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(
			func() {
				c.RefreshCache()
			},
		),
	)
}
