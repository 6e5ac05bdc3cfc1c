package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/service"
	"go.uber.org/zap"
)

// CreateOperation 接收 JSON 格式的日常作业记录。
func (a *API) CreateOperation(c *gin.Context) {
	var input service.OperationInput
	if !bindJSON(c, &input, "invalid JSON payload") {
		return
	}
	a.createOperation(c, input)
}

// SubmitEntry 接收录入页面提交的表单，校验规则与 JSON 接口一致。
func (a *API) SubmitEntry(c *gin.Context) {
	input, err := entryFormInput(c)
	if err != nil {
		respondServiceError(c, err, "invalid form submission")
		return
	}
	a.createOperation(c, input)
}

func (a *API) createOperation(c *gin.Context, input service.OperationInput) {
	op, err := a.operations.Create(input)
	if err != nil {
		if !service.IsValidationError(err) {
			a.logger.Error("create operation", zap.Error(err))
		}
		respondServiceError(c, err, "failed to create operation")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "operation created successfully",
		"id":      op.ID,
	})
}

func entryFormInput(c *gin.Context) (service.OperationInput, error) {
	input := service.OperationInput{
		TruckType:          c.PostForm("truck_type"),
		EquipmentMake:      c.PostForm("equipment_make"),
		SiteLocation:       c.PostForm("site_location"),
		PersonType:         c.PostForm("person_type"),
		PersonName:         c.PostForm("person_name"),
		OperationDate:      c.PostForm("operation_date"),
		FacilitatorName:    c.PostForm("facilitator_name"),
		LeaseStartDate:     c.PostForm("lease_start_date"),
		LeaseEndDate:       c.PostForm("lease_end_date"),
		LeasePaymentStatus: c.PostForm("lease_payment_status"),
		SignIn:             c.PostForm("sign_in"),
		SignOut:            c.PostForm("sign_out"),
		HadBreakdown:       formBool(c, "had_breakdown"),
		BreakdownExplained: c.PostForm("breakdown_explained"),
		HadRain:            formBool(c, "had_rain"),
		OtherIssuesNoRain:  c.PostForm("other_issues_no_rain"),
		Remarks:            c.PostForm("remarks"),
	}

	var err error
	ints := []struct {
		key string
		dst **int
	}{
		{"number_of_trucks", &input.NumberOfTrucks},
		{"trips_covered", &input.TripsCovered},
		{"expected_lease_days", &input.ExpectedLeaseDays},
		{"minimum_daily_quota", &input.MinimumDailyQuota},
	}
	for _, field := range ints {
		if *field.dst, err = formInt(c, field.key); err != nil {
			return input, err
		}
	}

	if input.DailyCommissionRate, err = formDecimal(c, "daily_commission_rate"); err != nil {
		return input, err
	}
	if input.TotalLeaseRate, err = formDecimal(c, "total_lease_rate"); err != nil {
		return input, err
	}
	if input.FuelAmount, err = formDecimal(c, "fuel_amount"); err != nil {
		return input, err
	}
	if input.HoursLost, err = formDecimal(c, "hours_lost"); err != nil {
		return input, err
	}
	if input.RainHoursLost, err = formDecimal(c, "rain_hours_lost"); err != nil {
		return input, err
	}

	return input, nil
}
