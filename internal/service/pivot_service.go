package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/haullog/internal/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 透视表时间粒度
const (
	BucketWeek    = "week"
	BucketMonth   = "month"
	BucketQuarter = "quarter"
	BucketYear    = "year"
)

// DefaultPivotWindow 是未指定起始日期时回看的天数。
const DefaultPivotWindow = 90

var pivotMetrics = map[string]string{
	"trucks":          "SUM(f.number_of_trucks)",
	"trips":           "SUM(f.trips_covered)",
	"fuel":            "SUM(f.fuel_amount)",
	"breakdown_hours": "SUM(f.hours_lost_breakdown)",
	"rain_hours":      "SUM(f.hours_lost_rain)",
	"lease_rate":      "SUM(f.total_lease_rate)",
	"commission":      "SUM(f.daily_commission)",
}

type bucketDef struct {
	year  string
	part  string
	label func(year, part int) string
}

var pivotBuckets = map[string]bucketDef{
	BucketWeek: {"d.iso_year", "d.week_of_year", func(y, p int) string {
		return fmt.Sprintf("%d-W%02d", y, p)
	}},
	BucketMonth: {"d.year", "d.month", func(y, p int) string {
		return fmt.Sprintf("%d-%02d", y, p)
	}},
	BucketQuarter: {"d.year", "d.quarter", func(y, p int) string {
		return fmt.Sprintf("%d-Q%d", y, p)
	}},
	BucketYear: {"d.year", "", func(y, _ int) string {
		return fmt.Sprintf("%d", y)
	}},
}

// PivotQuery 描述一次透视查询，零值日期使用默认窗口。
type PivotQuery struct {
	Start  time.Time
	End    time.Time
	Bucket string
	Metric string
}

// PivotTable 是时间粒度 × 设备标识的矩阵，Values 与 Columns 一一对应，缺失组合为 0。
type PivotTable struct {
	Bucket  string     `json:"bucket"`
	Metric  string     `json:"metric"`
	Start   string     `json:"start_date"`
	End     string     `json:"end_date"`
	Columns []string   `json:"columns"`
	Rows    []PivotRow `json:"rows"`
}

// PivotRow 是矩阵中的一行。
type PivotRow struct {
	Period string    `json:"period"`
	Values []float64 `json:"values"`
}

// EquipmentTotal 汇总某类设备在区间内的趟数与油耗。
type EquipmentTotal struct {
	TruckType     string  `json:"truck_type"`
	EquipmentMake string  `json:"equipment_make"`
	TotalTrips    int64   `json:"total_trips"`
	TotalFuel     float64 `json:"total_fuel"`
}

// PivotService 基于星型模型表提供分析查询。
type PivotService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPivotService 构造 PivotService
func NewPivotService(gdb *gorm.DB) *PivotService {
	return &PivotService{db: gdb, now: time.Now}
}

// WithClock 替换当前时间来源，用于测试。
func (s *PivotService) WithClock(now func() time.Time) *PivotService {
	if now != nil {
		s.now = now
	}
	return s
}

type pivotCell struct {
	BucketYear    int
	BucketPart    int
	TruckType     string
	EquipmentMake string
	Total         decimal.NullDecimal
}

// Pivot 汇总 fact_operations 的指定指标。只有存在事实行的时间段才会出现在结果中。
func (s *PivotService) Pivot(query PivotQuery) (*PivotTable, error) {
	bucket := strings.ToLower(strings.TrimSpace(query.Bucket))
	if bucket == "" {
		bucket = BucketMonth
	}
	def, ok := pivotBuckets[bucket]
	if !ok {
		return nil, invalid("bucket", "must be one of week, month, quarter, year")
	}
	metric := strings.ToLower(strings.TrimSpace(query.Metric))
	if metric == "" {
		metric = "trips"
	}
	expr, ok := pivotMetrics[metric]
	if !ok {
		return nil, invalid("metric", "must be one of trucks, trips, fuel, breakdown_hours, rain_hours, lease_rate, commission")
	}

	start, end, err := s.window(query.Start, query.End)
	if err != nil {
		return nil, err
	}

	partExpr := "0"
	groups := []string{def.year}
	if def.part != "" {
		partExpr = def.part
		groups = append(groups, def.part)
	}
	groups = append(groups, "e.truck_type", "e.equipment_make")

	var cells []pivotCell
	if err := s.db.Table("fact_operations AS f").
		Select(fmt.Sprintf("%s AS bucket_year, %s AS bucket_part, e.truck_type AS truck_type, e.equipment_make AS equipment_make, %s AS total", def.year, partExpr, expr)).
		Joins("JOIN dim_date d ON d.date_key = f.date_key").
		Joins("JOIN dim_equipment e ON e.equipment_key = f.equipment_key").
		Where("f.date_key >= ? AND f.date_key <= ?", db.DateKey(start), db.DateKey(end)).
		Group(strings.Join(groups, ", ")).
		Scan(&cells).Error; err != nil {
		return nil, fmt.Errorf("pivot %s by %s: %w", metric, bucket, err)
	}

	type periodKey struct{ year, part int }
	columnSet := map[string]struct{}{}
	values := map[periodKey]map[string]float64{}
	for _, cell := range cells {
		column := db.DimEquipment{TruckType: cell.TruckType, EquipmentMake: cell.EquipmentMake}.Identity()
		columnSet[column] = struct{}{}
		key := periodKey{cell.BucketYear, cell.BucketPart}
		if values[key] == nil {
			values[key] = map[string]float64{}
		}
		if cell.Total.Valid {
			values[key][column] += cell.Total.Decimal.InexactFloat64()
		}
	}

	columns := make([]string, 0, len(columnSet))
	for column := range columnSet {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	periods := make([]periodKey, 0, len(values))
	for key := range values {
		periods = append(periods, key)
	}
	sort.Slice(periods, func(i, j int) bool {
		if periods[i].year != periods[j].year {
			return periods[i].year < periods[j].year
		}
		return periods[i].part < periods[j].part
	})

	table := &PivotTable{
		Bucket:  bucket,
		Metric:  metric,
		Start:   start.Format(DateLayout),
		End:     end.Format(DateLayout),
		Columns: columns,
		Rows:    make([]PivotRow, 0, len(periods)),
	}
	for _, key := range periods {
		row := PivotRow{Period: def.label(key.year, key.part), Values: make([]float64, len(columns))}
		for i, column := range columns {
			row.Values[i] = values[key][column]
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

type equipmentTotalRow struct {
	TruckType     string
	EquipmentMake string
	TotalTrips    int64
	TotalFuel     decimal.NullDecimal
}

// EquipmentTotals 按 (truck_type, equipment_make) 汇总趟数与油耗，按类型及趟数降序排列。
func (s *PivotService) EquipmentTotals(start, end time.Time) ([]EquipmentTotal, error) {
	from, to, err := s.window(start, end)
	if err != nil {
		return nil, err
	}

	var rows []equipmentTotalRow
	if err := s.db.Table("fact_operations AS f").
		Select("e.truck_type AS truck_type, e.equipment_make AS equipment_make, COALESCE(SUM(f.trips_covered), 0) AS total_trips, SUM(f.fuel_amount) AS total_fuel").
		Joins("JOIN dim_equipment e ON e.equipment_key = f.equipment_key").
		Where("f.date_key >= ? AND f.date_key <= ?", db.DateKey(from), db.DateKey(to)).
		Group("e.truck_type, e.equipment_make").
		Order("e.truck_type ASC, total_trips DESC, e.equipment_make ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("equipment totals: %w", err)
	}

	totals := make([]EquipmentTotal, 0, len(rows))
	for _, row := range rows {
		total := EquipmentTotal{
			TruckType:     row.TruckType,
			EquipmentMake: row.EquipmentMake,
			TotalTrips:    row.TotalTrips,
		}
		if row.TotalFuel.Valid {
			total.TotalFuel = row.TotalFuel.Decimal.InexactFloat64()
		}
		totals = append(totals, total)
	}
	return totals, nil
}

func (s *PivotService) window(start, end time.Time) (time.Time, time.Time, error) {
	today := db.DateOnly(s.now())
	if end.IsZero() {
		end = today
	}
	if start.IsZero() {
		start = db.DateOnly(end).AddDate(0, 0, -DefaultPivotWindow)
	}
	start, end = db.DateOnly(start), db.DateOnly(end)
	if end.Before(start) {
		return time.Time{}, time.Time{}, invalid("end_date", "must not be before start_date")
	}
	return start, end, nil
}
