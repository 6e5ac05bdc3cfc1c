package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haullog/internal/db"
	"gorm.io/gorm"
)

const defaultRunListLimit = 20

// RunLog 读写 population_runs，不参与仓库事务。
type RunLog struct {
	db *gorm.DB
}

// NewRunLog 构造 RunLog
func NewRunLog(gdb *gorm.DB) *RunLog {
	return &RunLog{db: gdb}
}

// Start 写入一条 running 状态的运行记录。
func (l *RunLog) Start(ctx context.Context, trigger Trigger, at time.Time) (*db.PopulationRun, error) {
	run := &db.PopulationRun{
		ID:          uuid.NewString(),
		TriggeredBy: string(trigger),
		StartedAt:   at.UTC(),
		Status:      db.RunStatusRunning,
	}
	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("start population run: %w", err)
	}
	return run, nil
}

// Finish 根据 summary 与运行错误更新最终状态。
func (l *RunLog) Finish(ctx context.Context, run *db.PopulationRun, summary Summary, runErr error, at time.Time) error {
	finished := at.UTC()
	run.FinishedAt = &finished
	run.Scanned = summary.Scanned
	run.Processed = summary.Processed
	run.Skipped = summary.Skipped
	run.Failed = summary.Failed
	run.DimensionsCreated = summary.TotalDimensionsCreated()
	run.Status = db.RunStatusSucceeded
	run.ErrorMessage = ""
	if runErr != nil {
		run.Status = db.RunStatusFailed
		run.ErrorMessage = runErr.Error()
	}

	if err := l.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("finish population run %s: %w", run.ID, err)
	}
	return nil
}

// List 按开始时间倒序返回最近的运行记录。
func (l *RunLog) List(ctx context.Context, limit int) ([]db.PopulationRun, error) {
	if limit <= 0 {
		limit = defaultRunListLimit
	}
	var runs []db.PopulationRun
	if err := l.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list population runs: %w", err)
	}
	return runs, nil
}
