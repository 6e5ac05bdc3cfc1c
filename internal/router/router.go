package router

import (
	"github.com/gin-gonic/gin"
	"github.com/haullog/internal/handler"
	"github.com/haullog/internal/logging"
	"github.com/haullog/internal/metrics"
	"go.uber.org/zap"
)

// Options 配置路由层的共享依赖。
type Options struct {
	APIKey string
	Logger *zap.Logger
	// Metrics 为空时不注册 /metrics。
	Metrics *metrics.Metrics
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(logging.GinRecovery(opts.Logger), logging.GinLogger(opts.Logger))

	r.GET("/healthz", api.HealthCheck)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	// 录入页面提交的表单
	r.POST("/entries", api.SubmitEntry)

	v1 := r.Group("/api/v1")
	v1.Use(handler.APIKeyRequired(opts.APIKey, opts.Logger))
	{
		v1.POST("/operations", api.CreateOperation)
		v1.GET("/export", api.ExportOperations)
		v1.GET("/tracker", api.GetTracker)

		analytics := v1.Group("/analytics")
		{
			analytics.GET("/pivot", api.GetPivot)
			analytics.GET("/equipment", api.GetEquipmentTotals)
		}

		wh := v1.Group("/warehouse")
		{
			wh.POST("/populate", api.TriggerPopulation)
			wh.GET("/runs", api.ListPopulationRuns)
		}
	}

	return r
}
