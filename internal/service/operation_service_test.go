package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/metrics"
	"github.com/haullog/internal/testutil"
	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validInput() OperationInput {
	return OperationInput{
		TruckType:     "Tipper",
		EquipmentMake: "Volvo",
		SiteLocation:  "Lagos",
		OperationDate: "2024-03-01",
	}
}

func TestCreateOperationDefaults(t *testing.T) {
	gdb := testutil.OpenDB(t)
	svc := NewOperationService(gdb)

	op, err := svc.Create(validInput())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if op.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}
	if op.NumberOfTrucks != 1 {
		t.Fatalf("expected number_of_trucks default 1, got %d", op.NumberOfTrucks)
	}
	if !op.OperationDate.Equal(day(2024, 3, 1)) {
		t.Fatalf("unexpected operation date %v", op.OperationDate)
	}

	var stored db.DailyOperation
	if err := gdb.First(&stored, op.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.TripsCovered != nil || stored.FuelAmount.Valid || stored.HoursLost.Valid {
		t.Fatalf("optional fields should stay null: %+v", stored)
	}
}

func TestCreateOperationValidation(t *testing.T) {
	gdb := testutil.OpenDB(t)
	svc := NewOperationService(gdb)

	tests := []struct {
		name  string
		edit  func(in *OperationInput)
		field string
	}{
		{"missing truck type", func(in *OperationInput) { in.TruckType = "  " }, "truck_type"},
		{"missing make", func(in *OperationInput) { in.EquipmentMake = "" }, "equipment_make"},
		{"missing site", func(in *OperationInput) { in.SiteLocation = "" }, "site_location"},
		{"missing date", func(in *OperationInput) { in.OperationDate = "" }, "operation_date"},
		{"bad date", func(in *OperationInput) { in.OperationDate = "01/03/2024" }, "operation_date"},
		{"zero trucks", func(in *OperationInput) { in.NumberOfTrucks = intPtr(0) }, "number_of_trucks"},
		{"negative trips", func(in *OperationInput) { in.TripsCovered = intPtr(-1) }, "trips_covered"},
		{"zero lease days", func(in *OperationInput) { in.ExpectedLeaseDays = intPtr(0) }, "expected_lease_days"},
		{"unknown person type", func(in *OperationInput) { in.PersonType = "Pilot" }, "person_type"},
		{"unknown payment status", func(in *OperationInput) { in.LeasePaymentStatus = "Paid" }, "lease_payment_status"},
		{"bad sign in", func(in *OperationInput) { in.SignIn = "25:00" }, "sign_in"},
		{"lease ends before start", func(in *OperationInput) {
			in.LeaseStartDate = "2024-03-10"
			in.LeaseEndDate = "2024-03-01"
		}, "lease_end_date"},
		{"negative fuel", func(in *OperationInput) {
			in.FuelAmount = decimal.NewNullDecimal(decimal.NewFromInt(-5))
		}, "fuel_amount"},
		{"breakdown hours over a day", func(in *OperationInput) {
			in.HadBreakdown = true
			in.HoursLost = decimal.NewNullDecimal(decimal.NewFromInt(30))
		}, "hours_lost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.edit(&in)
			_, err := svc.Create(in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tt.field {
				t.Fatalf("expected field %s, got %s", tt.field, verr.Field)
			}
		})
	}

	var count int64
	gdb.Model(&db.DailyOperation{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected input must not be stored, found %d rows", count)
	}
}

func TestCreateOperationNormalizesConditionalFields(t *testing.T) {
	gdb := testutil.OpenDB(t)
	svc := NewOperationService(gdb)

	in := validInput()
	in.HadBreakdown = false
	in.BreakdownExplained = "engine"
	in.HoursLost = decimal.NewNullDecimal(decimal.NewFromInt(3))
	in.HadRain = false
	in.RainHoursLost = decimal.NewNullDecimal(decimal.NewFromInt(2))
	in.OtherIssuesNoRain = "road closed"
	in.PersonType = "driver"
	in.LeasePaymentStatus = "completed"
	in.SignIn = "7:05"
	in.Remarks = "<script>alert(1)</script>Loaded at <b>pit 3</b> & weighed"

	op, err := svc.Create(in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if op.BreakdownExplained != "" || op.HoursLost.Valid {
		t.Fatalf("breakdown fields must be dropped without a breakdown: %+v", op)
	}
	if op.RainHoursLost.Valid {
		t.Fatalf("rain hours must be dropped without rain")
	}
	if op.OtherIssuesNoRain != "road closed" {
		t.Fatalf("other issues should be kept when it did not rain, got %q", op.OtherIssuesNoRain)
	}
	if op.PersonType != db.PersonTypeDriver || op.LeasePaymentStatus != db.PaymentCompleted {
		t.Fatalf("choices not normalized: %q %q", op.PersonType, op.LeasePaymentStatus)
	}
	if op.SignIn != "07:05" {
		t.Fatalf("expected sign in 07:05, got %q", op.SignIn)
	}
	if op.Remarks != "Loaded at pit 3 & weighed" {
		t.Fatalf("unexpected sanitized remarks %q", op.Remarks)
	}

	rainy := validInput()
	rainy.HadRain = true
	rainy.RainHoursLost = decimal.NewNullDecimal(decimal.RequireFromString("1.5"))
	rainy.OtherIssuesNoRain = "ignored"
	op, err = svc.Create(rainy)
	if err != nil {
		t.Fatalf("create rainy failed: %v", err)
	}
	if !op.RainHoursLost.Valid || op.OtherIssuesNoRain != "" {
		t.Fatalf("rain fields not normalized: %+v", op)
	}
}

func TestCreateOperationCountsMetric(t *testing.T) {
	gdb := testutil.OpenDB(t)
	m := metrics.New()
	svc := NewOperationService(gdb).WithMetrics(m)

	if _, err := svc.Create(validInput()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "haullog_operations_created_total" {
			found = family.GetMetric()[0].GetCounter().GetValue() == 1
		}
	}
	if !found {
		t.Fatalf("expected operations counter to be 1")
	}
}

func TestListBetweenIsInclusive(t *testing.T) {
	gdb := testutil.OpenDB(t)
	svc := NewOperationService(gdb)
	for _, d := range []string{"2024-02-28", "2024-03-01", "2024-03-05", "2024-03-06"} {
		in := validInput()
		in.OperationDate = d
		if _, err := svc.Create(in); err != nil {
			t.Fatalf("create %s: %v", d, err)
		}
	}

	ops, err := svc.ListBetween(day(2024, 3, 1), day(2024, 3, 5))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if !ops[0].OperationDate.Equal(day(2024, 3, 1)) || !ops[1].OperationDate.Equal(day(2024, 3, 5)) {
		t.Fatalf("unexpected order: %v %v", ops[0].OperationDate, ops[1].OperationDate)
	}
}

func TestWeeklyExportExcludesOlderRecords(t *testing.T) {
	gdb := testutil.OpenDB(t)
	svc := NewOperationService(gdb)
	today := day(2024, 6, 15)

	for _, d := range []time.Time{today, today.AddDate(0, 0, -10)} {
		in := validInput()
		in.OperationDate = d.Format(DateLayout)
		if _, err := svc.Create(in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	rng, err := ResolveExportRange("weekly", "", "", today)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ops, err := svc.ListBetween(rng.Start, rng.End)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ops) != 1 || !ops[0].OperationDate.Equal(today) {
		t.Fatalf("expected only today's record, got %+v", ops)
	}

	var buf bytes.Buffer
	if err := WriteOperationsCSV(&buf, ops); err != nil {
		t.Fatalf("csv: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header and one row, got %d", len(records))
	}
	if records[0][0] != "id" || records[1][8] != "2024-06-15" {
		t.Fatalf("unexpected csv content: %v", records)
	}
	if records[1][18] != "" {
		t.Fatalf("null fuel should export empty, got %q", records[1][18])
	}
}
