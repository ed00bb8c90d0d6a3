package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"circulation-engine/internal/domain/loan"
)

// OverdueSweepJob runs the scheduled overdue transition for the whole loan
// book. The coordinator does the per-loan work; the job adds the schedule
// boundary, the timeout, and the summary log line operators grep for.
type OverdueSweepJob struct {
	circulation loan.CirculationService
	timeout     time.Duration
	logger      *slog.Logger
}

func NewOverdueSweepJob(circulation loan.CirculationService, timeout time.Duration, logger *slog.Logger) *OverdueSweepJob {
	if circulation == nil || logger == nil {
		panic("OverdueSweepJob dependencies cannot be nil")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &OverdueSweepJob{
		circulation: circulation,
		timeout:     timeout,
		logger:      logger.With("job", "OverdueSweep"),
	}
}

func (j *OverdueSweepJob) Run(ctx context.Context) error {
	startTime := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	j.logger.InfoContext(runCtx, "Starting scheduled overdue sweep.")

	transitioned, err := j.circulation.SweepOverdue(runCtx)

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("loans_marked_overdue", len(transitioned)),
	)
	if err != nil {
		summaryLog.WarnContext(runCtx, "Overdue sweep finished with errors.", slog.Any("error", err))
		return fmt.Errorf("overdue sweep job: %w", err)
	}

	summaryLog.InfoContext(runCtx, "Overdue sweep finished successfully.")
	return nil
}
