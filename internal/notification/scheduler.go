package notification

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// NotificationScheduler periodically sends due broadcasts.
type NotificationScheduler struct {
	service  *NotificationService
	interval time.Duration
	logger   *zap.Logger
}

func NewNotificationScheduler(service *NotificationService, cfg *config.AppConfig, logger *zap.Logger) *NotificationScheduler {
	interval := cfg.NotificationInterval
	if interval <= 0 {
		interval = time.Minute
	}
	return &NotificationScheduler{service: service, interval: interval, logger: logger.Named("notification")}
}

// StartScheduler runs the ticker loop for the lifetime of the application.
func (s *NotificationScheduler) StartScheduler(lc fx.Lifecycle) {
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("starting notification scheduler", zap.Duration("interval", s.interval))
			go func() {
				for {
					select {
					case <-ticker.C:
						ctx, cancel := context.WithTimeout(context.Background(), s.interval)
						s.service.SendDueNotifications(ctx)
						cancel()
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info("stopping notification scheduler")
			ticker.Stop()
			close(done)
			return nil
		},
	})
}
