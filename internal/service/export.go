package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/haullog/internal/db"
	"github.com/shopspring/decimal"
)

// 导出周期
const (
	PeriodWeekly    = "weekly"
	PeriodMonthly   = "monthly"
	PeriodQuarterly = "quarterly"
)

// ErrInvalidPeriod 在 period 取值未知时返回，包装在 ValidationError 中。
var ErrInvalidPeriod = errors.New("invalid export period")

// ExportRange 是导出使用的闭区间日期范围。
type ExportRange struct {
	Start time.Time
	End   time.Time
}

// Filename 返回附件文件名 logistics_data_<start>_to_<end>.csv。
func (r ExportRange) Filename() string {
	return fmt.Sprintf("logistics_data_%s_to_%s.csv", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// QuarterStart 返回 t 所在季度的第一天。
func QuarterStart(t time.Time) time.Time {
	day := db.DateOnly(t)
	month := time.Month(3*((int(day.Month())-1)/3) + 1)
	return time.Date(day.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// ResolveExportRange 将命名周期或显式起止日期解析为日期区间。
// period 优先；weekly 为包含今天在内的最近 7 天，monthly/quarterly 为本月/本季度至今。
func ResolveExportRange(period, startRaw, endRaw string, today time.Time) (ExportRange, error) {
	day := db.DateOnly(today)
	period = strings.ToLower(strings.TrimSpace(period))

	if period != "" {
		switch period {
		case PeriodWeekly:
			return ExportRange{Start: day.AddDate(0, 0, -6), End: day}, nil
		case PeriodMonthly:
			return ExportRange{Start: time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC), End: day}, nil
		case PeriodQuarterly:
			return ExportRange{Start: QuarterStart(day), End: day}, nil
		default:
			return ExportRange{}, &ValidationError{
				Field:   "period",
				Message: "must be one of weekly, monthly, quarterly",
				Err:     ErrInvalidPeriod,
			}
		}
	}

	if strings.TrimSpace(startRaw) == "" || strings.TrimSpace(endRaw) == "" {
		return ExportRange{}, invalid("period", "provide a period or both start_date and end_date")
	}
	start, err := parseDate("start_date", startRaw)
	if err != nil {
		return ExportRange{}, err
	}
	end, err := parseDate("end_date", endRaw)
	if err != nil {
		return ExportRange{}, err
	}
	if end.Before(*start) {
		return ExportRange{}, invalid("end_date", "must not be before start_date")
	}
	return ExportRange{Start: *start, End: *end}, nil
}

var exportHeader = []string{
	"id", "truck_type", "number_of_trucks", "equipment_make", "site_location",
	"person_type", "person_name", "trips_covered", "operation_date",
	"facilitator_name", "daily_commission_rate", "total_lease_rate",
	"expected_lease_days", "lease_start_date", "lease_end_date",
	"lease_payment_status", "sign_in", "sign_out", "fuel_amount",
	"minimum_daily_quota", "had_breakdown", "breakdown_explained", "hours_lost",
	"had_rain", "rain_hours_lost", "other_issues_no_rain", "remarks",
}

// WriteOperationsCSV 输出平铺的表格，空值写为空串。
func WriteOperationsCSV(w io.Writer, ops []db.DailyOperation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, op := range ops {
		record := []string{
			strconv.FormatUint(uint64(op.ID), 10),
			op.TruckType,
			strconv.Itoa(op.NumberOfTrucks),
			op.EquipmentMake,
			op.SiteLocation,
			op.PersonType,
			op.PersonName,
			formatInt(op.TripsCovered),
			op.OperationDate.Format(DateLayout),
			op.FacilitatorName,
			formatDecimal(op.DailyCommissionRate),
			formatDecimal(op.TotalLeaseRate),
			formatInt(op.ExpectedLeaseDays),
			formatDate(op.LeaseStartDate),
			formatDate(op.LeaseEndDate),
			op.LeasePaymentStatus,
			op.SignIn,
			op.SignOut,
			formatDecimal(op.FuelAmount),
			formatInt(op.MinimumDailyQuota),
			strconv.FormatBool(op.HadBreakdown),
			op.BreakdownExplained,
			formatDecimal(op.HoursLost),
			strconv.FormatBool(op.HadRain),
			formatDecimal(op.RainHoursLost),
			op.OtherIssuesNoRain,
			op.Remarks,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", op.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatDecimal(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.StringFixed(2)
}

func formatDate(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(DateLayout)
}
