package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"notes-sync-service/internal/cache"
	"notes-sync-service/internal/events"
)

// StartRedelivery по расписанию channel.redelivery_schedule переотправляет события из очереди неудачных.
// Запуски не перекрываются: следующий пропускается, пока идет предыдущий.
func (a *App) StartRedelivery(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := c.AddFunc(a.Config.Channel.RedeliverySchedule, func() {
		a.Redeliver(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("redelivery schedule %q: %w", a.Config.Channel.RedeliverySchedule, err)
	}

	c.Start()
	a.Logger.Info("event redelivery scheduled", zap.String("schedule", a.Config.Channel.RedeliverySchedule))
	return c, nil
}

// Redeliver один проход по очереди неудачных событий
func (a *App) Redeliver(ctx context.Context) {
	if a.Queue.Len() == 0 {
		return
	}
	if _, disabled := a.Channel.(events.Discard); disabled {
		return
	}

	sent, err := a.Queue.Redeliver(ctx, a.Config.Channel.Topic, a.Publisher)
	if err != nil {
		a.Logger.Warn("redelivery pass interrupted",
			zap.Int("delivered", sent),
			zap.Int("queued", a.Queue.Len()),
			zap.Error(err))
	}
}

// HealthChecks проверки зависимостей для /healthz и команды ping
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"search": a.Index.Ping,
		"channel": func(context.Context) error {
			if _, disabled := a.Channel.(events.Discard); disabled {
				return errors.New("change events disabled")
			}
			return nil
		},
	}
	if p, ok := unwrapCache(a.Cache).(interface{ Ping(context.Context) error }); ok {
		checks["cache"] = p.Ping
	}
	return checks
}

func unwrapCache(c cache.Cache) cache.Cache {
	if in, ok := c.(*cache.Instrumented); ok {
		return in.Cache
	}
	return c
}
