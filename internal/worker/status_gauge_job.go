package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
)

// StatusCounter reports how many service requests exist per status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.ServiceRequestStatus]int64, error)
}

// StatusGaugeSetter receives the counts.
type StatusGaugeSetter interface {
	SetStatusCounts(counts map[domain.ServiceRequestStatus]int64)
}

// StatusGaugeJob periodically refreshes the per-status gauge.
type StatusGaugeJob struct {
	counter StatusCounter
	gauge   StatusGaugeSetter
	logger  *zap.Logger
	timeout time.Duration
	cron    *cron.Cron
}

// NewStatusGaugeJob schedules the job on spec, a robfig/cron expression such
// as "@every 1m". The job is not started until Start is called.
func NewStatusGaugeJob(spec string, counter StatusCounter, gauge StatusGaugeSetter, logger *zap.Logger) (*StatusGaugeJob, error) {
	job := &StatusGaugeJob{
		counter: counter,
		gauge:   gauge,
		logger:  logger,
		timeout: 10 * time.Second,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := job.cron.AddFunc(spec, func() { job.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule status gauge job %q: %w", spec, err)
	}
	return job, nil
}

// Run performs a single refresh.
func (j *StatusGaugeJob) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	counts, err := j.counter.CountByStatus(ctx)
	if err != nil {
		j.logger.Warn("status gauge refresh failed", zap.Error(err))
		return
	}
	j.gauge.SetStatusCounts(counts)
	j.logger.Debug("status gauge refreshed", zap.Any("counts", counts))
}

// Start runs one refresh immediately and then follows the schedule.
func (j *StatusGaugeJob) Start() {
	j.Run(context.Background())
	j.cron.Start()
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (j *StatusGaugeJob) Stop() {
	<-j.cron.Stop().Done()
}
