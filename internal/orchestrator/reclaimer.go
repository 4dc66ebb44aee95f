package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ClimateIntel/internal/store"
	"ClimateIntel/pkg/logger"
)

var errStalled = errors.New("task stalled in pending state")

// Reclaimer periodically fails pending tasks whose runner died without
// settling them (process crash, lost goroutine). Each reclaimed task also
// gets a fallback report so the run still produces output.
type Reclaimer struct {
	tasks      store.TaskStore
	runner     Runner
	staleAfter time.Duration
	interval   time.Duration
	log        *logger.Logger
}

func NewReclaimer(tasks store.TaskStore, runner Runner, staleAfter, interval time.Duration, log *logger.Logger) *Reclaimer {
	return &Reclaimer{
		tasks:      tasks,
		runner:     runner,
		staleAfter: staleAfter,
		interval:   interval,
		log:        log,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (r *Reclaimer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := r.Sweep(ctx); err != nil {
					r.log.WithError(err).Warn("stale task sweep failed")
				}
			}
		}
	}()
}

// Sweep fails every pending task older than the stale threshold and returns
// how many it reclaimed.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	stale, err := r.tasks.StalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	for _, task := range stale {
		reason := fmt.Sprintf("%v: pending since %s", errStalled, task.CreatedAt.Format(time.RFC3339))
		if err := r.tasks.MarkFailed(ctx, task.ID, reason); err != nil {
			r.log.WithError(err).Errorf("could not reclaim stalled task %s", task.ID)
			continue
		}
		r.log.Warnf("reclaimed stalled task %s (created %s)", task.ID, task.CreatedAt.Format(time.RFC3339))
		if _, err := r.runner.FallbackReport(ctx, errStalled); err != nil {
			r.log.WithError(err).Errorf("could not store fallback report for stalled task %s", task.ID)
		}
	}
	return len(stale), nil
}
