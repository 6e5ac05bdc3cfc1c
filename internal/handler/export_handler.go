package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/service"
	"go.uber.org/zap"
)

const noDataMessage = "no data found for the selected period"

// ExportOperations 按命名周期或起止日期导出日常作业记录，默认 CSV 附件。
// 无匹配记录返回 404 与提示信息，区别于 500 的存储错误。
func (a *API) ExportOperations(c *gin.Context) {
	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", "csv")))
	if format != "csv" && format != "json" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or json", "field": "format"})
		return
	}

	rng, err := service.ResolveExportRange(c.Query("period"), c.Query("start_date"), c.Query("end_date"), a.today())
	if err != nil {
		respondServiceError(c, err, "invalid export range")
		return
	}

	ops, err := a.operations.ListBetween(rng.Start, rng.End)
	if err != nil {
		a.logger.Error("export operations", zap.Error(err))
		respondServiceError(c, err, "a database error occurred")
		return
	}
	if len(ops) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": noDataMessage})
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{
			"start_date": rng.Start.Format(service.DateLayout),
			"end_date":   rng.End.Format(service.DateLayout),
			"count":      len(ops),
			"operations": ops,
		})
		return
	}

	var buf bytes.Buffer
	if err := service.WriteOperationsCSV(&buf, ops); err != nil {
		respondServiceError(c, err, "failed to render export")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment;filename=%s", rng.Filename()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
