package orchestrator

import (
	"context"
	"time"

	"ClimateIntel/internal/models"
	"ClimateIntel/pkg/logger"
)

// Scheduler launches one analysis run per day at a fixed local hour.
type Scheduler struct {
	orc  *Orchestrator
	hour int
	log  *logger.Logger
}

func NewScheduler(orc *Orchestrator, hour int, log *logger.Logger) *Scheduler {
	return &Scheduler{orc: orc, hour: hour, log: log}
}

// Start runs the daily loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		for {
			next := nextRun(time.Now(), s.hour)
			s.log.Infof("next scheduled analysis at %s", next.Format(time.RFC3339))
			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
				if _, err := s.orc.Launch(ctx, models.TaskKindScheduled); err != nil {
					s.log.WithError(err).Error("could not launch scheduled analysis")
				}
			}
		}
	}()
}

// nextRun returns the next occurrence of the given hour strictly after now.
func nextRun(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
