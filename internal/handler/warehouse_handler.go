package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/db"
	"github.com/haullog/internal/warehouse"
)

// TriggerPopulation 同步执行一次仓库填充并返回运行摘要。
func (a *API) TriggerPopulation(c *gin.Context) {
	summary, err := a.population.PopulateAll(c.Request.Context(), warehouse.TriggerHTTP)
	if errors.Is(err, warehouse.ErrRunInProgress) {
		respondError(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "warehouse population failed",
			"details": err.Error(),
			"summary": summary,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ListPopulationRuns 返回最近的填充运行记录。
func (a *API) ListPopulationRuns(c *gin.Context) {
	limit, err := parseIntQuery(c, "limit", 20)
	if err != nil {
		respondServiceError(c, err, "invalid limit")
		return
	}

	runs, err := a.population.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to list population runs")
		return
	}
	if runs == nil {
		runs = []db.PopulationRun{}
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
