package service

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/metrics"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DateLayout 是所有日期入参使用的格式。
const DateLayout = "2006-01-02"

const clockLayout = "15:04"

var maxHoursPerDay = decimal.NewFromInt(24)

// ValidationError 指出首个不合法的字段，校验失败时不会写库。
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// OperationInput 定义新建日常作业记录时可提交的字段。
// 日期使用 YYYY-MM-DD 字符串，签到签退使用 HH:MM。
type OperationInput struct {
	TruckType           string              `json:"truck_type"`
	NumberOfTrucks      *int                `json:"number_of_trucks"`
	EquipmentMake       string              `json:"equipment_make"`
	SiteLocation        string              `json:"site_location"`
	PersonType          string              `json:"person_type"`
	PersonName          string              `json:"person_name"`
	TripsCovered        *int                `json:"trips_covered"`
	OperationDate       string              `json:"operation_date"`
	FacilitatorName     string              `json:"facilitator_name"`
	DailyCommissionRate decimal.NullDecimal `json:"daily_commission_rate"`
	TotalLeaseRate      decimal.NullDecimal `json:"total_lease_rate"`
	ExpectedLeaseDays   *int                `json:"expected_lease_days"`
	LeaseStartDate      string              `json:"lease_start_date"`
	LeaseEndDate        string              `json:"lease_end_date"`
	LeasePaymentStatus  string              `json:"lease_payment_status"`
	SignIn              string              `json:"sign_in"`
	SignOut             string              `json:"sign_out"`
	FuelAmount          decimal.NullDecimal `json:"fuel_amount"`
	MinimumDailyQuota   *int                `json:"minimum_daily_quota"`
	HadBreakdown        bool                `json:"had_breakdown"`
	BreakdownExplained  string              `json:"breakdown_explained"`
	HoursLost           decimal.NullDecimal `json:"hours_lost"`
	HadRain             bool                `json:"had_rain"`
	RainHoursLost       decimal.NullDecimal `json:"rain_hours_lost"`
	OtherIssuesNoRain   string              `json:"other_issues_no_rain"`
	Remarks             string              `json:"remarks"`
}

// OperationService 负责日常作业记录的写入与按日期读取，记录只追加。
type OperationService struct {
	db      *gorm.DB
	policy  *bluemonday.Policy
	metrics *metrics.Metrics
}

// NewOperationService 构造 OperationService
func NewOperationService(gdb *gorm.DB) *OperationService {
	return &OperationService{db: gdb, policy: bluemonday.StrictPolicy()}
}

// WithMetrics 设置写入计数器，nil 表示不记录。
func (s *OperationService) WithMetrics(m *metrics.Metrics) *OperationService {
	s.metrics = m
	return s
}

// Create 校验并保存一条记录，校验失败返回 *ValidationError。
func (s *OperationService) Create(input OperationInput) (*db.DailyOperation, error) {
	op, err := s.build(input)
	if err != nil {
		return nil, err
	}

	if err := s.db.Create(op).Error; err != nil {
		return nil, fmt.Errorf("create operation: %w", err)
	}
	s.metrics.OperationCreated()
	return op, nil
}

// ListBetween 返回 operation_date 落在闭区间 [start, end] 内的记录。
func (s *OperationService) ListBetween(start, end time.Time) ([]db.DailyOperation, error) {
	var ops []db.DailyOperation
	if err := s.db.
		Where("operation_date >= ? AND operation_date <= ?", db.DateOnly(start), db.DateOnly(end)).
		Order("operation_date ASC, id ASC").
		Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

func (s *OperationService) build(input OperationInput) (*db.DailyOperation, error) {
	op := &db.DailyOperation{
		TruckType:       s.clean(input.TruckType),
		EquipmentMake:   s.clean(input.EquipmentMake),
		SiteLocation:    s.clean(input.SiteLocation),
		PersonName:      s.clean(input.PersonName),
		FacilitatorName: s.clean(input.FacilitatorName),
		Remarks:         s.clean(input.Remarks),
		HadBreakdown:    input.HadBreakdown,
		HadRain:         input.HadRain,
		NumberOfTrucks:  1,
	}

	switch {
	case op.TruckType == "":
		return nil, invalid("truck_type", "is required")
	case op.EquipmentMake == "":
		return nil, invalid("equipment_make", "is required")
	case op.SiteLocation == "":
		return nil, invalid("site_location", "is required")
	}

	if strings.TrimSpace(input.OperationDate) == "" {
		return nil, invalid("operation_date", "is required")
	}
	opDate, err := parseDate("operation_date", input.OperationDate)
	if err != nil {
		return nil, err
	}
	op.OperationDate = *opDate

	if input.NumberOfTrucks != nil {
		if *input.NumberOfTrucks < 1 {
			return nil, invalid("number_of_trucks", "must be at least 1")
		}
		op.NumberOfTrucks = *input.NumberOfTrucks
	}
	if err := checkMin("trips_covered", input.TripsCovered, 0); err != nil {
		return nil, err
	}
	op.TripsCovered = input.TripsCovered
	if err := checkMin("expected_lease_days", input.ExpectedLeaseDays, 1); err != nil {
		return nil, err
	}
	op.ExpectedLeaseDays = input.ExpectedLeaseDays
	if err := checkMin("minimum_daily_quota", input.MinimumDailyQuota, 0); err != nil {
		return nil, err
	}
	op.MinimumDailyQuota = input.MinimumDailyQuota

	if op.PersonType, err = normalizeChoice("person_type", input.PersonType, db.PersonTypeDriver, db.PersonTypeOperator); err != nil {
		return nil, err
	}
	if op.LeasePaymentStatus, err = normalizeChoice("lease_payment_status", input.LeasePaymentStatus, db.PaymentOutstanding, db.PaymentCompleted); err != nil {
		return nil, err
	}

	if op.LeaseStartDate, err = parseDate("lease_start_date", input.LeaseStartDate); err != nil {
		return nil, err
	}
	if op.LeaseEndDate, err = parseDate("lease_end_date", input.LeaseEndDate); err != nil {
		return nil, err
	}
	if op.LeaseStartDate != nil && op.LeaseEndDate != nil && op.LeaseEndDate.Before(*op.LeaseStartDate) {
		return nil, invalid("lease_end_date", "must not be before lease_start_date")
	}

	if op.SignIn, err = parseClock("sign_in", input.SignIn); err != nil {
		return nil, err
	}
	if op.SignOut, err = parseClock("sign_out", input.SignOut); err != nil {
		return nil, err
	}

	amounts := []struct {
		field string
		value decimal.NullDecimal
		dst   *decimal.NullDecimal
	}{
		{"daily_commission_rate", input.DailyCommissionRate, &op.DailyCommissionRate},
		{"total_lease_rate", input.TotalLeaseRate, &op.TotalLeaseRate},
		{"fuel_amount", input.FuelAmount, &op.FuelAmount},
	}
	for _, amount := range amounts {
		if amount.value.Valid && amount.value.Decimal.IsNegative() {
			return nil, invalid(amount.field, "must not be negative")
		}
		*amount.dst = amount.value
	}

	if op.HadBreakdown {
		if err := checkHours("hours_lost", input.HoursLost); err != nil {
			return nil, err
		}
		op.BreakdownExplained = s.clean(input.BreakdownExplained)
		op.HoursLost = input.HoursLost
	}
	if op.HadRain {
		if err := checkHours("rain_hours_lost", input.RainHoursLost); err != nil {
			return nil, err
		}
		op.RainHoursLost = input.RainHoursLost
	} else {
		op.OtherIssuesNoRain = s.clean(input.OtherIssuesNoRain)
	}

	return op, nil
}

// clean 去除首尾空白与所有 HTML 标记。
func (s *OperationService) clean(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(trimmed)))
}

func parseDate(field, raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return nil, invalid(field, "must be a date in YYYY-MM-DD format")
	}
	day := db.DateOnly(parsed)
	return &day, nil
}

func parseClock(field, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	parsed, err := time.Parse(clockLayout, trimmed)
	if err != nil {
		return "", invalid(field, "must be a time in HH:MM format")
	}
	return parsed.Format(clockLayout), nil
}

func checkMin(field string, value *int, min int) error {
	if value != nil && *value < min {
		return invalid(field, fmt.Sprintf("must be at least %d", min))
	}
	return nil
}

func checkHours(field string, value decimal.NullDecimal) error {
	if !value.Valid {
		return nil
	}
	if value.Decimal.IsNegative() || value.Decimal.GreaterThan(maxHoursPerDay) {
		return invalid(field, "must be between 0 and 24")
	}
	return nil
}

func normalizeChoice(field, raw string, options ...string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	for _, option := range options {
		if strings.EqualFold(trimmed, option) {
			return option, nil
		}
	}
	return "", invalid(field, fmt.Sprintf("must be one of %s", strings.Join(options, ", ")))
}

// IsValidationError 判断 err 是否为输入校验错误。
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
