package automation

import (
	"context"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// Scheduler fires a run on the configured cron spec. Ticks are no-ops while
// no admin holds the lock.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	lock    Lock
	cfg     config.AutomationConfig
	logger  *zap.Logger
}

func NewScheduler(service *Service, lock Lock, cfg *config.AppConfig, logger *zap.Logger) (*Scheduler, error) {
	logger = logger.Named("automation")
	cronLogger := zapCronLogger{logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		service: service,
		lock:    lock,
		cfg:     cfg.Automation,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(s.cfg.Cron, s.tick); err != nil {
		return nil, errors.Wrapf(err, "invalid AUTOMATION_CRON %q", s.cfg.Cron)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()

	report, err := s.service.Run(ctx, Active(s.lock))
	switch {
	case errors.Is(err, ErrNotActive):
		return
	case errors.Is(err, ErrRunInProgress):
		s.logger.Debug("scheduled run skipped, another run is in progress")
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	case report.Updates > 0:
		s.logger.Info("scheduled run finished", zap.Int("updates", report.Updates))
	}
}

// StartScheduler ties the cron loop to the application lifecycle.
func (s *Scheduler) StartScheduler(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("starting automation scheduler", zap.String("spec", s.cfg.Cron))
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping automation scheduler")
			select {
			case <-s.cron.Stop().Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

// zapCronLogger routes cron's own messages (skips, panics) to zap.
type zapCronLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
