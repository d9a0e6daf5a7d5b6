package payout

import (
	"context"
	"errors"
	"time"

	"marketplace-checkout/internal/lock"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LockKey guards payout runs across processes.
const LockKey = "payout:vendors"

type locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler triggers the engine on a cron schedule. A run still in progress
// suppresses the next tick locally; the redis lock covers other processes.
type Scheduler struct {
	engine runner
	locker locker
	ttl    time.Duration
	cron   *cron.Cron
	logger *zap.Logger
}

func NewScheduler(engine runner, l locker, schedule string, ttl time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	s := &Scheduler{
		engine: engine,
		locker: l,
		ttl:    ttl,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.logger.Error("scheduled payout run", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce performs a single locked run. Finding the lock held is not an
// error: another process is already paying out.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	err := s.locker.WithLock(ctx, LockKey, s.ttl, func(ctx context.Context) error {
		_, err := s.engine.Run(ctx)
		return err
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.logger.Info("payout run skipped, lock held elsewhere")
		return nil
	}
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running job
// has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
