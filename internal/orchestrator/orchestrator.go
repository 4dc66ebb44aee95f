package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ClimateIntel/internal/models"
	"ClimateIntel/internal/store"
	"ClimateIntel/pkg/logger"
)

// Runner is the unit of work the orchestrator drives. *pipeline.Pipeline
// satisfies it.
type Runner interface {
	Run(ctx context.Context, taskID string) (*models.Report, error)
	FallbackReport(ctx context.Context, cause error) (*models.Report, error)
}

// bookkeepingTimeout bounds the store writes that finish a task, which run
// on a fresh context because the run context may already be dead.
const bookkeepingTimeout = 30 * time.Second

// Orchestrator launches pipeline runs as tracked tasks. Each launch creates
// a pending TaskRecord, runs the pipeline in the background under a timeout,
// and settles the record to completed or failed.
type Orchestrator struct {
	runner     Runner
	tasks      store.TaskStore
	runTimeout time.Duration
	log        *logger.Logger
	wg         sync.WaitGroup
}

func New(runner Runner, tasks store.TaskStore, runTimeout time.Duration, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		runner:     runner,
		tasks:      tasks,
		runTimeout: runTimeout,
		log:        log,
	}
}

// Launch creates the task record and starts the run in the background. It
// returns as soon as the record is persisted; callers poll the task store
// for the outcome.
func (o *Orchestrator) Launch(ctx context.Context, kind string) (*models.TaskRecord, error) {
	task := &models.TaskRecord{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      models.TaskStatusPending,
		Description: describe(kind),
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	o.log.Infof("launched %s analysis task %s", kind, task.ID)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(task)
	}()
	return task, nil
}

// Wait blocks until all in-flight runs have settled their task records.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// execute runs the pipeline under the configured timeout and settles the
// task record. The run is detached from the launching request's context so
// an HTTP client disconnect does not cancel it.
func (o *Orchestrator) execute(task *models.TaskRecord) {
	runCtx, cancel := context.WithTimeout(context.Background(), o.runTimeout)
	defer cancel()

	_, err := o.runner.Run(runCtx, task.ID)

	ctx, done := context.WithTimeout(context.Background(), bookkeepingTimeout)
	defer done()

	if err == nil {
		if markErr := o.tasks.MarkCompleted(ctx, task.ID); markErr != nil {
			o.log.WithError(markErr).Errorf("task %s finished but could not be marked completed", task.ID)
		}
		return
	}

	o.log.WithError(err).Warnf("task %s failed", task.ID)
	if markErr := o.tasks.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
		o.log.WithError(markErr).Errorf("could not mark task %s failed", task.ID)
	}
	// A failed or timed-out run still leaves a report behind.
	if _, fbErr := o.runner.FallbackReport(ctx, err); fbErr != nil {
		o.log.WithError(fbErr).Errorf("could not store fallback report for task %s", task.ID)
	}
}

func describe(kind string) string {
	switch kind {
	case models.TaskKindScheduled:
		return "Scheduled daily climate risk analysis"
	default:
		return "Manually triggered climate risk analysis"
	}
}
