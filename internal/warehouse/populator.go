package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/logging"
	"github.com/haullog/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Trigger 标识运行的发起方。
type Trigger string

const (
	TriggerCLI      Trigger = "cli"
	TriggerHTTP     Trigger = "http"
	TriggerSchedule Trigger = "schedule"
)

// ErrRunInProgress 表示本进程内已有填充任务在执行。
var ErrRunInProgress = errors.New("warehouse population already in progress")

const scanBatchSize = 500

// Options 配置 Populator。BatchSize 为 0 时整次运行使用一个事务；
// 大于 0 时每 BatchSize 条记录一个事务，失败的分块回滚并终止运行，之前的分块保留。
type Options struct {
	BatchSize int
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Summary 汇总一次运行。Processed 为新写入的事实行数，Skipped 为已存在事实行的记录数，
// Failed 为因回滚而未能装载的记录数。
type Summary struct {
	RunID             string         `json:"run_id"`
	Trigger           Trigger        `json:"trigger"`
	Scanned           int            `json:"scanned"`
	Processed         int            `json:"processed"`
	Skipped           int            `json:"skipped"`
	Failed            int            `json:"failed"`
	DimensionsCreated map[string]int `json:"dimensions_created"`
	Duration          time.Duration  `json:"duration"`
}

// TotalDimensionsCreated 返回各维度新建行数之和。
func (s Summary) TotalDimensionsCreated() int {
	total := 0
	for _, n := range s.DimensionsCreated {
		total += n
	}
	return total
}

// Populator 驱动 Resolver 与 Loader 扫描全部日常作业记录。
// 依赖事实行的存在性检查实现增量，重复运行安全。
type Populator struct {
	db     *gorm.DB
	opts   Options
	logger *zap.Logger
	loader *Loader
	runs   *RunLog
	now    func() time.Time
	mu     sync.Mutex
}

// NewPopulator 构造 Populator
func NewPopulator(gdb *gorm.DB, opts Options) *Populator {
	if opts.BatchSize < 0 {
		opts.BatchSize = 0
	}
	return &Populator{
		db:     gdb,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("warehouse"),
		loader: NewLoader(),
		runs:   NewRunLog(gdb),
		now:    time.Now,
	}
}

// PopulateAll 执行一次完整的仓库填充。已有运行时立即返回 ErrRunInProgress。
func (p *Populator) PopulateAll(ctx context.Context, trigger Trigger) (Summary, error) {
	if !p.mu.TryLock() {
		return Summary{Trigger: trigger}, ErrRunInProgress
	}
	defer p.mu.Unlock()

	started := p.now()
	run, err := p.runs.Start(ctx, trigger, started)
	if err != nil {
		return Summary{Trigger: trigger}, err
	}

	log := p.logger.With(zap.String("run_id", run.ID), zap.String("trigger", string(trigger)))
	log.Info("population started", zap.Int("batch_size", p.opts.BatchSize))

	var summary Summary
	var runErr error
	if p.opts.BatchSize > 0 {
		summary, runErr = p.populateChunked(ctx, log)
	} else {
		summary, runErr = p.populateSingle(ctx)
	}
	summary.RunID = run.ID
	summary.Trigger = trigger
	summary.Duration = p.now().Sub(started)
	if runErr != nil {
		runErr = fmt.Errorf("populate warehouse: %w", runErr)
	}

	// 使用独立的 context，取消后也要落盘运行结果。
	if err := p.runs.Finish(context.WithoutCancel(ctx), run, summary, runErr, p.now()); err != nil {
		log.Error("record population run", zap.Error(err))
	}

	status := db.RunStatusSucceeded
	if runErr != nil {
		status = db.RunStatusFailed
	}
	p.opts.Metrics.ObservePopulation(metrics.PopulationResult{
		Status:            status,
		Duration:          summary.Duration,
		Loaded:            summary.Processed,
		Skipped:           summary.Skipped,
		DimensionsCreated: summary.DimensionsCreated,
	})

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int("scanned", summary.Scanned),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Any("dimensions_created", summary.DimensionsCreated),
		zap.Duration("duration", summary.Duration),
	}
	if runErr != nil {
		log.Error("population failed", append(fields, zap.Error(runErr))...)
	} else {
		log.Info("population finished", fields...)
	}

	return summary, runErr
}

// ListRuns 返回最近的运行记录，最新的在前。
func (p *Populator) ListRuns(ctx context.Context, limit int) ([]db.PopulationRun, error) {
	return p.runs.List(ctx, limit)
}

// populateSingle 在一个事务中完成全部记录，任何存储错误都会回滚本次运行的所有写入。
func (p *Populator) populateSingle(ctx context.Context) (Summary, error) {
	var batch []db.DailyOperation
	var scanned, loaded, skipped int
	resolver := NewResolver()

	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.FindInBatches(&batch, scanBatchSize, func(_ *gorm.DB, _ int) error {
			scanned += len(batch)
			for i := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				outcome, err := p.processOne(tx, resolver, &batch[i])
				if err != nil {
					return err
				}
				if outcome == Loaded {
					loaded++
				} else {
					skipped++
				}
			}
			return nil
		})
		return res.Error
	})
	if err != nil {
		return Summary{Scanned: scanned, Failed: scanned, DimensionsCreated: map[string]int{}}, err
	}

	return Summary{
		Scanned:           scanned,
		Processed:         loaded,
		Skipped:           skipped,
		DimensionsCreated: resolver.Created(),
	}, nil
}

// populateChunked 按 id 升序分页，每页一个事务；新建维度计数只在提交后合并。
func (p *Populator) populateChunked(ctx context.Context, log *zap.Logger) (Summary, error) {
	summary := Summary{DimensionsCreated: map[string]int{}}
	gdb := p.db.WithContext(ctx)
	var lastID uint

	for chunk := 1; ; chunk++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		var ops []db.DailyOperation
		if err := gdb.Where("id > ?", lastID).Order("id ASC").Limit(p.opts.BatchSize).Find(&ops).Error; err != nil {
			return summary, fmt.Errorf("scan operations after id %d: %w", lastID, err)
		}
		if len(ops) == 0 {
			return summary, nil
		}
		summary.Scanned += len(ops)

		resolver := NewResolver()
		var loaded, skipped int
		err := gdb.Transaction(func(tx *gorm.DB) error {
			for i := range ops {
				outcome, err := p.processOne(tx, resolver, &ops[i])
				if err != nil {
					return err
				}
				if outcome == Loaded {
					loaded++
				} else {
					skipped++
				}
			}
			return nil
		})
		if err != nil {
			summary.Failed = len(ops)
			return summary, fmt.Errorf("chunk %d: %w", chunk, err)
		}

		summary.Processed += loaded
		summary.Skipped += skipped
		for dimension, n := range resolver.Created() {
			summary.DimensionsCreated[dimension] += n
		}
		log.Debug("chunk committed", zap.Int("chunk", chunk), zap.Int("loaded", loaded), zap.Int("skipped", skipped))

		lastID = ops[len(ops)-1].ID
		if len(ops) < p.opts.BatchSize {
			return summary, nil
		}
	}
}

func (p *Populator) processOne(tx *gorm.DB, resolver *Resolver, op *db.DailyOperation) (Outcome, error) {
	keys, err := resolver.Resolve(tx, op)
	if err != nil {
		return 0, fmt.Errorf("operation %d: %w", op.ID, err)
	}
	outcome, err := p.loader.Load(tx, op, keys)
	if err != nil {
		return 0, fmt.Errorf("operation %d: %w", op.ID, err)
	}
	return outcome, nil
}
