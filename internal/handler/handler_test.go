package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/db"
	"github.com/haullog/internal/testutil"
	"github.com/haullog/internal/warehouse"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var fixedToday = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

func setupTestAPI(t *testing.T) *API {
	t.Helper()
	gdb := testutil.OpenDB(t)
	return NewAPI(gdb, warehouse.NewPopulator(gdb, warehouse.Options{}), Options{
		Now: func() time.Time { return fixedToday },
	})
}

type stubPopulation struct {
	err error
}

func (s stubPopulation) PopulateAll(context.Context, warehouse.Trigger) (warehouse.Summary, error) {
	return warehouse.Summary{Failed: 2}, s.err
}

func (s stubPopulation) ListRuns(context.Context, int) ([]db.PopulationRun, error) {
	return nil, nil
}

func jsonContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestCreateOperationReportsField(t *testing.T) {
	api := setupTestAPI(t)

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing site", `{"truck_type":"Tipper","equipment_make":"Volvo","operation_date":"2024-03-01"}`, "site_location"},
		{"bad date", `{"truck_type":"Tipper","equipment_make":"Volvo","site_location":"Lagos","operation_date":"March 1"}`, "operation_date"},
		{"wrong type", `{"truck_type":"Tipper","equipment_make":"Volvo","site_location":"Lagos","operation_date":"2024-03-01","trips_covered":"many"}`, "trips_covered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := jsonContext(http.MethodPost, "/api/v1/operations", tt.body)
			api.CreateOperation(c)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			if got := decodeBody(t, w)["field"]; got != tt.field {
				t.Fatalf("expected field %s, got %v", tt.field, got)
			}
		})
	}

	var count int64
	api.DB().Model(&db.DailyOperation{}).Count(&count)
	if count != 0 {
		t.Fatalf("malformed payloads must not be stored")
	}
}

func TestCreateOperationSuccess(t *testing.T) {
	api := setupTestAPI(t)
	body := `{"truck_type":"Tipper","equipment_make":"Volvo","site_location":"Lagos","operation_date":"2024-03-01",
		"facilitator_name":"Ade","total_lease_rate":150000.50,"fuel_amount":"45.5","had_breakdown":true,"hours_lost":2}`

	c, w := jsonContext(http.MethodPost, "/api/v1/operations", body)
	api.CreateOperation(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["message"] == nil || resp["id"] == nil {
		t.Fatalf("unexpected response %v", resp)
	}

	var stored db.DailyOperation
	if err := api.DB().First(&stored).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.TotalLeaseRate.Decimal.String() != "150000.5" || stored.FuelAmount.Decimal.String() != "45.5" {
		t.Fatalf("unexpected amounts %s %s", stored.TotalLeaseRate.Decimal, stored.FuelAmount.Decimal)
	}
	if !stored.HoursLost.Valid {
		t.Fatalf("expected hours lost to be kept")
	}
}

func TestSubmitEntryRejectsBadNumber(t *testing.T) {
	api := setupTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/entries", strings.NewReader("truck_type=Tipper&equipment_make=Volvo&site_location=Lagos&operation_date=2024-03-01&fuel_amount=lots"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	api.SubmitEntry(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if got := decodeBody(t, w)["field"]; got != "fuel_amount" {
		t.Fatalf("expected fuel_amount field, got %v", got)
	}
}

func seedOperations(t *testing.T, api *API, dates ...time.Time) {
	t.Helper()
	for _, d := range dates {
		op := db.DailyOperation{
			TruckType:      "Tipper",
			NumberOfTrucks: 1,
			EquipmentMake:  "Volvo",
			SiteLocation:   "Lagos",
			OperationDate:  db.DateOnly(d),
		}
		if err := api.DB().Create(&op).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestExportWeeklyCSV(t *testing.T) {
	api := setupTestAPI(t)
	seedOperations(t, api, fixedToday, fixedToday.AddDate(0, 0, -10))

	c, w := jsonContext(http.MethodGet, "/api/v1/export?period=weekly", "")
	api.ExportOperations(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment;filename=logistics_data_2024-06-09_to_2024-06-15.csv" {
		t.Fatalf("unexpected disposition %q", got)
	}
	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 2 || records[1][8] != "2024-06-15" {
		t.Fatalf("expected only today's record, got %v", records)
	}
}

func TestExportJSONAndEmpty(t *testing.T) {
	api := setupTestAPI(t)
	seedOperations(t, api, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))

	c, w := jsonContext(http.MethodGet, "/api/v1/export?start_date=2024-01-01&end_date=2024-01-31&format=json", "")
	api.ExportOperations(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if got := decodeBody(t, w)["count"]; got != float64(1) {
		t.Fatalf("expected count 1, got %v", got)
	}

	c, w = jsonContext(http.MethodGet, "/api/v1/export?period=monthly", "")
	api.ExportOperations(c)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for empty period, got %d", w.Code)
	}
	if got := decodeBody(t, w)["message"]; got != noDataMessage {
		t.Fatalf("unexpected message %v", got)
	}

	c, w = jsonContext(http.MethodGet, "/api/v1/export?period=yearly", "")
	api.ExportOperations(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unknown period, got %d", w.Code)
	}
}

func TestTriggerPopulationConflict(t *testing.T) {
	gdb := testutil.OpenDB(t)
	api := NewAPI(gdb, stubPopulation{err: warehouse.ErrRunInProgress}, Options{})

	c, w := jsonContext(http.MethodPost, "/api/v1/warehouse/populate", "")
	api.TriggerPopulation(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", w.Code)
	}

	api = NewAPI(gdb, stubPopulation{err: errors.New("disk full")}, Options{})
	c, w = jsonContext(http.MethodPost, "/api/v1/warehouse/populate", "")
	api.TriggerPopulation(c)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "disk full") {
		t.Fatalf("expected details in body, got %s", w.Body.String())
	}
}

func TestTriggerPopulationAndListRuns(t *testing.T) {
	api := setupTestAPI(t)
	seedOperations(t, api, fixedToday)

	c, w := jsonContext(http.MethodPost, "/api/v1/warehouse/populate", "")
	api.TriggerPopulation(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	c, w = jsonContext(http.MethodGet, "/api/v1/warehouse/runs?limit=5", "")
	api.ListPopulationRuns(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	runs, _ := decodeBody(t, w)["runs"].([]any)
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %v", runs)
	}
	run := runs[0].(map[string]any)
	if run["triggered_by"] != "http" || run["status"] != "succeeded" {
		t.Fatalf("unexpected run %v", run)
	}
}

func TestGetTrackerEmpty(t *testing.T) {
	api := setupTestAPI(t)
	c, w := jsonContext(http.MethodGet, "/api/v1/tracker", "")
	api.GetTracker(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"contracts":[]`) {
		t.Fatalf("expected empty contracts array, got %s", w.Body.String())
	}
}

func TestGetPivotRejectsBadMetric(t *testing.T) {
	api := setupTestAPI(t)
	c, w := jsonContext(http.MethodGet, "/api/v1/analytics/pivot?metric=speed", "")
	api.GetPivot(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if got := decodeBody(t, w)["field"]; got != "metric" {
		t.Fatalf("expected metric field, got %v", got)
	}
}

func TestAPIKeyRequiredLogsClientIP(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := gin.New()
	r.Use(APIKeyRequired("secret", zap.New(core)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if logs.Len() != 1 || logs.All()[0].ContextMap()["client_ip"] != "10.1.2.3" {
		t.Fatalf("expected warning with client ip, got %v", logs.All())
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(APIKeyHeader, "secret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with the right key, got %d", w.Code)
	}
}
