package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/campus/core"
)

const runTimeout = 10 * time.Minute

// Scheduler runs the jobs on their cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

func NewScheduler(conf *core.Config, reminder *FeeReminder, logger core.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
	}
	if conf.Jobs.FeeReminderSchedule != "" {
		if _, err := s.cron.AddFunc(conf.Jobs.FeeReminderSchedule, s.remindFees(reminder)); err != nil {
			return nil, errors.Wrap(err, "scheduling fee reminders")
		}
	}
	return s, nil
}

func (s *Scheduler) remindFees(reminder *FeeReminder) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		n, err := reminder.Run(ctx, core.Today())
		if err != nil {
			s.logger.Error("jobs: fee reminders", err)
			return
		}
		s.logger.Info("jobs: fee reminders sent", map[string]interface{}{"fees": n})
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling new runs and waits for the running ones until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{err}, keysAndValues...)...)
}
