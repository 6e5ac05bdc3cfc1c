package warehouse

import (
	"fmt"

	"github.com/haullog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome 表示单条记录的装载结果。
type Outcome int

const (
	// Loaded 表示新写入了一行事实。
	Loaded Outcome = iota + 1
	// Skipped 表示该记录已有事实行，本次未做任何修改。
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Loaded:
		return "loaded"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Loader 为每条日常作业记录写入至多一行事实。
type Loader struct{}

// NewLoader 构造 Loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load 若 source_operation_id 已存在则跳过，否则写入事实行。
// ON CONFLICT (source_operation_id) DO NOTHING 兜底并发写入。
func (l *Loader) Load(tx *gorm.DB, op *db.DailyOperation, keys DimensionKeys) (Outcome, error) {
	var count int64
	if err := tx.Model(&db.FactOperation{}).
		Where("source_operation_id = ?", op.ID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("check fact for operation %d: %w", op.ID, err)
	}
	if count > 0 {
		return Skipped, nil
	}

	fact := NewFact(op, keys)
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_operation_id"}},
			DoNothing: true,
		}).
		Create(&fact)
	if res.Error != nil {
		return 0, fmt.Errorf("insert fact for operation %d: %w", op.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return Skipped, nil
	}
	return Loaded, nil
}

// NewFact 原样复制度量值，不做换算或汇总。
func NewFact(op *db.DailyOperation, keys DimensionKeys) db.FactOperation {
	return db.FactOperation{
		DateKey:            keys.DateKey,
		EquipmentKey:       keys.EquipmentKey,
		SiteKey:            keys.SiteKey,
		FacilitatorKey:     keys.FacilitatorKey,
		NumberOfTrucks:     op.NumberOfTrucks,
		TripsCovered:       op.TripsCovered,
		FuelAmount:         op.FuelAmount,
		HoursLostBreakdown: op.HoursLost,
		HoursLostRain:      op.RainHoursLost,
		TotalLeaseRate:     op.TotalLeaseRate,
		DailyCommission:    op.DailyCommissionRate,
		SourceOperationID:  op.ID,
	}
}
