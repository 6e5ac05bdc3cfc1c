package db

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// PersonTypeDriver 表示驾驶员。
	PersonTypeDriver = "Driver"
	// PersonTypeOperator 表示设备操作员。
	PersonTypeOperator = "Operator"

	// PaymentOutstanding 表示租赁款未结清。
	PaymentOutstanding = "Outstanding"
	// PaymentCompleted 表示租赁款已结清。
	PaymentCompleted = "Completed"
)

// DailyOperation 是一条卡车/设备的日常作业记录，只追加不修改。
// 可选的数值字段使用 NullDecimal/指针，未填写时保存为 NULL。
type DailyOperation struct {
	ID                  uint                `gorm:"primaryKey" json:"id"`
	TruckType           string              `gorm:"size:100;not null" json:"truck_type"`
	NumberOfTrucks      int                 `gorm:"not null;default:1" json:"number_of_trucks"`
	EquipmentMake       string              `gorm:"size:100;not null" json:"equipment_make"`
	SiteLocation        string              `gorm:"size:200;not null" json:"site_location"`
	PersonType          string              `gorm:"size:20" json:"person_type,omitempty"`
	PersonName          string              `gorm:"size:100" json:"person_name,omitempty"`
	TripsCovered        *int                `json:"trips_covered"`
	OperationDate       time.Time           `gorm:"type:date;not null;index" json:"operation_date"`
	FacilitatorName     string              `gorm:"size:100;index" json:"facilitator_name,omitempty"`
	DailyCommissionRate decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"daily_commission_rate"`
	TotalLeaseRate      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"total_lease_rate"`
	ExpectedLeaseDays   *int                `json:"expected_lease_days"`
	LeaseStartDate      *time.Time          `gorm:"type:date" json:"lease_start_date"`
	LeaseEndDate        *time.Time          `gorm:"type:date" json:"lease_end_date"`
	LeasePaymentStatus  string              `gorm:"size:20" json:"lease_payment_status,omitempty"`
	SignIn              string              `gorm:"size:5" json:"sign_in,omitempty"`
	SignOut             string              `gorm:"size:5" json:"sign_out,omitempty"`
	FuelAmount          decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"fuel_amount"`
	MinimumDailyQuota   *int                `json:"minimum_daily_quota"`
	HadBreakdown        bool                `gorm:"not null;default:false" json:"had_breakdown"`
	BreakdownExplained  string              `gorm:"type:text" json:"breakdown_explained,omitempty"`
	HoursLost           decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"hours_lost"`
	HadRain             bool                `gorm:"not null;default:false" json:"had_rain"`
	RainHoursLost       decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"rain_hours_lost"`
	OtherIssuesNoRain   string              `gorm:"type:text" json:"other_issues_no_rain,omitempty"`
	Remarks             string              `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
}

// TableName 固定表名，避免 gorm 复数化规则变动。
func (DailyOperation) TableName() string {
	return "daily_operations"
}

// DateOnly 把任意时间截断为 UTC 零点，所有日期列都以此形式存储。
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
