package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/service"
	"go.uber.org/zap"
)

// GetTracker 返回每个 facilitator 最新一条记录的合同信息。
func (a *API) GetTracker(c *gin.Context) {
	today := a.today()
	rows, err := a.tracker.Contracts(today)
	if err != nil {
		a.logger.Error("contract tracker", zap.Error(err))
		respondServiceError(c, err, "failed to load contract tracker")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today":     today.Format(service.DateLayout),
		"contracts": rows,
	})
}

// GetPivot 返回时间粒度 × 设备标识的指标矩阵。
func (a *API) GetPivot(c *gin.Context) {
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		respondServiceError(c, err, "invalid start_date")
		return
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		respondServiceError(c, err, "invalid end_date")
		return
	}

	table, err := a.pivots.Pivot(service.PivotQuery{
		Start:  start,
		End:    end,
		Bucket: c.Query("bucket"),
		Metric: c.Query("metric"),
	})
	if err != nil {
		if !service.IsValidationError(err) {
			a.logger.Error("analytics pivot", zap.Error(err))
		}
		respondServiceError(c, err, "failed to build pivot")
		return
	}

	c.JSON(http.StatusOK, table)
}

// GetEquipmentTotals 返回区间内各设备类型的趟数与油耗合计，默认最近 90 天。
func (a *API) GetEquipmentTotals(c *gin.Context) {
	start, err := parseDateQuery(c, "start_date")
	if err != nil {
		respondServiceError(c, err, "invalid start_date")
		return
	}
	end, err := parseDateQuery(c, "end_date")
	if err != nil {
		respondServiceError(c, err, "invalid end_date")
		return
	}

	totals, err := a.pivots.EquipmentTotals(start, end)
	if err != nil {
		if !service.IsValidationError(err) {
			a.logger.Error("equipment totals", zap.Error(err))
		}
		respondServiceError(c, err, "failed to load equipment totals")
		return
	}

	c.JSON(http.StatusOK, gin.H{"equipment": totals})
}
