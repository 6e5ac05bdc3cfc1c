package service

import (
	"fmt"
	"time"

	"github.com/haullog/internal/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContractRow 是合同跟踪表的一行，取自该 facilitator 最新的一条作业记录。
// LastBreakdownHours 仅反映最近一次上报，而非区间合计。
type ContractRow struct {
	FacilitatorName    string              `json:"facilitator_name"`
	OperationID        uint                `json:"operation_id"`
	OperationDate      time.Time           `json:"operation_date"`
	SiteLocation       string              `json:"site_location"`
	LeaseStartDate     *time.Time          `json:"lease_start_date"`
	LeaseEndDate       *time.Time          `json:"lease_end_date"`
	DaysRemaining      *int                `json:"days_remaining"`
	TotalLeaseRate     decimal.NullDecimal `json:"total_lease_rate"`
	LeasePaymentStatus string              `json:"lease_payment_status"`
	LastBreakdownHours decimal.NullDecimal `json:"last_breakdown_hours"`
}

// TrackerService 生成合同跟踪视图，只读。
type TrackerService struct {
	db *gorm.DB
}

// NewTrackerService 构造 TrackerService
func NewTrackerService(gdb *gorm.DB) *TrackerService {
	return &TrackerService{db: gdb}
}

// Contracts 为每个非空 facilitator 选出 operation_date 最大的记录，日期相同时取 id 最大者。
// 结果按 facilitator 名称排序；没有记录时返回空切片。
func (s *TrackerService) Contracts(today time.Time) ([]ContractRow, error) {
	var ops []db.DailyOperation
	if err := s.db.
		Where("facilitator_name IS NOT NULL AND facilitator_name <> ''").
		Order("facilitator_name ASC, operation_date DESC, id DESC").
		Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}

	day := db.DateOnly(today)
	rows := make([]ContractRow, 0)
	seen := make(map[string]struct{})
	for _, op := range ops {
		if _, ok := seen[op.FacilitatorName]; ok {
			continue
		}
		seen[op.FacilitatorName] = struct{}{}

		row := ContractRow{
			FacilitatorName:    op.FacilitatorName,
			OperationID:        op.ID,
			OperationDate:      op.OperationDate,
			SiteLocation:       op.SiteLocation,
			LeaseStartDate:     op.LeaseStartDate,
			LeaseEndDate:       op.LeaseEndDate,
			TotalLeaseRate:     op.TotalLeaseRate,
			LeasePaymentStatus: op.LeasePaymentStatus,
			LastBreakdownHours: op.HoursLost,
		}
		if op.LeaseEndDate != nil {
			remaining := DaysBetween(day, *op.LeaseEndDate)
			row.DaysRemaining = &remaining
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DaysBetween 返回 to - from 的整天数，过期时为负数。
func DaysBetween(from, to time.Time) int {
	return int(db.DateOnly(to).Sub(db.DateOnly(from)).Hours() / 24)
}
