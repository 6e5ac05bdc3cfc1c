package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/haullog/internal/logging"
	"github.com/haullog/internal/warehouse"
	"go.uber.org/zap"
)

// Runner 是调度器触发的仓库填充入口。
type Runner interface {
	PopulateAll(ctx context.Context, trigger warehouse.Trigger) (warehouse.Summary, error)
}

// Scheduler 按固定间隔触发仓库填充。
type Scheduler struct {
	cron     *gocron.Scheduler
	runner   Runner
	interval time.Duration
	logger   *zap.Logger
}

// New 创建调度器，interval 必须为正。
func New(runner Runner, interval time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("schedule interval must be positive, got %s", interval)
	}

	cron := gocron.NewScheduler(time.UTC)
	// 上一次运行未结束时跳过本次触发
	cron.SingletonModeAll()
	cron.WaitForScheduleAll()

	return &Scheduler{
		cron:     cron,
		runner:   runner,
		interval: interval,
		logger:   logging.OrNop(logger),
	}, nil
}

// Run 启动调度并阻塞到 ctx 取消。
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.Every(s.interval).Do(s.tick, ctx); err != nil {
		return fmt.Errorf("register population job: %w", err)
	}

	s.logger.Info("population scheduler started", zap.Duration("interval", s.interval))
	s.cron.StartAsync()

	<-ctx.Done()
	s.cron.Stop()
	s.logger.Info("population scheduler stopped")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := s.runner.PopulateAll(ctx, warehouse.TriggerSchedule)
	switch {
	case errors.Is(err, warehouse.ErrRunInProgress):
		s.logger.Info("scheduled population skipped, another run is active")
	case err != nil:
		s.logger.Error("scheduled population failed",
			zap.String("run_id", summary.RunID),
			zap.Int("failed", summary.Failed),
			zap.Error(err),
		)
	default:
		s.logger.Info("scheduled population finished",
			zap.String("run_id", summary.RunID),
			zap.Int("processed", summary.Processed),
			zap.Int("skipped", summary.Skipped),
		)
	}
}
