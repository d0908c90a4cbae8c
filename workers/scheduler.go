package workers

import (
	"context"
	"errors"
	"time"

	"theo-challengers/services"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Jobs holds the periodic work. Backup is nil when snapshots are off.
type Jobs struct {
	Players *services.PlayerService
	Backup  *services.BackupService
	Log     *zap.Logger
	Now     func() time.Time
}

// MonthlyReset zeroes the monthly score if the calendar month moved on.
func (j *Jobs) MonthlyReset(ctx context.Context) error {
	p, err := j.Players.Current(ctx)
	if errors.Is(err, services.ErrNoPlayer) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = j.Players.ApplyMonthlyReset(ctx, p, j.Now())
	return err
}

// RunBackup uploads a snapshot of the local replica.
func (j *Jobs) RunBackup(ctx context.Context) error {
	if j.Backup == nil {
		return nil
	}
	p, err := j.Players.Current(ctx)
	if errors.Is(err, services.ErrNoPlayer) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = j.Backup.Run(ctx, p)
	return err
}

// StartScheduler registers the jobs and starts gocron. The monthly check runs
// once right away so a device that was off over the month boundary resets on boot.
// Call Shutdown on the returned scheduler when ctx ends.
func StartScheduler(ctx context.Context, jobs *Jobs, resetEvery, backupEvery time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	run := func(name string, fn func(context.Context) error) func() {
		return func() {
			if err := fn(ctx); err != nil {
				jobs.Log.Error("[Scheduler] job failed", zap.String("job", name), zap.Error(err))
			}
		}
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(resetEvery),
		gocron.NewTask(run("monthly_reset", jobs.MonthlyReset)),
		gocron.WithName("monthly_reset"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return nil, err
	}

	if jobs.Backup != nil {
		if _, err := sched.NewJob(
			gocron.DurationJob(backupEvery),
			gocron.NewTask(run("backup", jobs.RunBackup)),
			gocron.WithName("backup"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, err
		}
	}

	sched.Start()
	jobs.Log.Info("⏰ [Scheduler] started", zap.Int("jobs", len(sched.Jobs())))
	return sched, nil
}
