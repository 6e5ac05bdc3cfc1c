package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dimension 名称，用于运行统计与指标标签。
const (
	DimensionDate        = "date"
	DimensionEquipment   = "equipment"
	DimensionSite        = "site"
	DimensionFacilitator = "facilitator"
)

// DimDate 日期维度，主键由日期确定性推导，创建后不再修改。
type DimDate struct {
	DateKey    int       `gorm:"primaryKey;autoIncrement:false" json:"date_key"`
	FullDate   time.Time `gorm:"type:date;not null;uniqueIndex" json:"full_date"`
	Year       int       `gorm:"not null" json:"year"`
	Quarter    int       `gorm:"not null" json:"quarter"`
	Month      int       `gorm:"not null" json:"month"`
	MonthName  string    `gorm:"size:10;not null" json:"month_name"`
	Day        int       `gorm:"not null" json:"day"`
	DayOfWeek  string    `gorm:"size:10;not null" json:"day_of_week"`
	WeekOfYear int       `gorm:"not null" json:"week_of_year"`
	ISOYear    int       `gorm:"column:iso_year;not null" json:"iso_year"`
}

func (DimDate) TableName() string {
	return "dim_date"
}

// DateKey 返回 year*10000+month*100+day。
func DateKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// NewDimDate 由日期纯函数式地构造维度行，周数采用 ISO 8601。
func NewDimDate(t time.Time) DimDate {
	day := DateOnly(t)
	isoYear, isoWeek := day.ISOWeek()
	return DimDate{
		DateKey:    DateKey(day),
		FullDate:   day,
		Year:       day.Year(),
		Quarter:    (int(day.Month())-1)/3 + 1,
		Month:      int(day.Month()),
		MonthName:  day.Month().String(),
		Day:        day.Day(),
		DayOfWeek:  day.Weekday().String(),
		WeekOfYear: isoWeek,
		ISOYear:    isoYear,
	}
}

// DimEquipment 以 (truck_type, equipment_make) 为自然键。
type DimEquipment struct {
	EquipmentKey  uint   `gorm:"primaryKey" json:"equipment_key"`
	TruckType     string `gorm:"size:100;not null;uniqueIndex:idx_dim_equipment_natural" json:"truck_type"`
	EquipmentMake string `gorm:"size:100;not null;uniqueIndex:idx_dim_equipment_natural" json:"equipment_make"`
}

func (DimEquipment) TableName() string {
	return "dim_equipment"
}

// Identity 返回分析透视表使用的 "<make> <type>" 标签。
func (e DimEquipment) Identity() string {
	return e.EquipmentMake + " " + e.TruckType
}

// DimSite 以 site_location 为自然键。
type DimSite struct {
	SiteKey      uint   `gorm:"primaryKey" json:"site_key"`
	SiteLocation string `gorm:"size:200;not null;uniqueIndex" json:"site_location"`
}

func (DimSite) TableName() string {
	return "dim_site"
}

// DimFacilitator 以 facilitator_name 为自然键。
type DimFacilitator struct {
	FacilitatorKey  uint   `gorm:"primaryKey" json:"facilitator_key"`
	FacilitatorName string `gorm:"size:100;not null;uniqueIndex" json:"facilitator_name"`
}

func (DimFacilitator) TableName() string {
	return "dim_facilitator"
}

// FactOperation 每条日常作业记录至多对应一行，由 source_operation_id 唯一约束保证。
// 度量值原样复制，源记录为空的字段保持 NULL。
type FactOperation struct {
	ID                 uint                `gorm:"primaryKey" json:"id"`
	DateKey            int                 `gorm:"not null;index" json:"date_key"`
	EquipmentKey       uint                `gorm:"not null;index" json:"equipment_key"`
	SiteKey            uint                `gorm:"not null;index" json:"site_key"`
	FacilitatorKey     *uint               `gorm:"index" json:"facilitator_key"`
	NumberOfTrucks     int                 `gorm:"not null" json:"number_of_trucks"`
	TripsCovered       *int                `json:"trips_covered"`
	FuelAmount         decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"fuel_amount"`
	HoursLostBreakdown decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"hours_lost_breakdown"`
	HoursLostRain      decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"hours_lost_rain"`
	TotalLeaseRate     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"total_lease_rate"`
	DailyCommission    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"daily_commission"`
	SourceOperationID  uint                `gorm:"not null;uniqueIndex" json:"source_operation_id"`
	CreatedAt          time.Time           `json:"created_at"`

	Date        DimDate         `gorm:"foreignKey:DateKey;references:DateKey" json:"-"`
	Equipment   DimEquipment    `gorm:"foreignKey:EquipmentKey;references:EquipmentKey" json:"-"`
	Site        DimSite         `gorm:"foreignKey:SiteKey;references:SiteKey" json:"-"`
	Facilitator *DimFacilitator `gorm:"foreignKey:FacilitatorKey;references:FacilitatorKey" json:"-"`
}

func (FactOperation) TableName() string {
	return "fact_operations"
}
