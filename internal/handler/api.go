package handler

import (
	"time"

	"github.com/haullog/internal/logging"
	"github.com/haullog/internal/metrics"
	"github.com/haullog/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	operations *service.OperationService
	tracker    *service.TrackerService
	pivots     *service.PivotService
	population populationProvider
	logger     *zap.Logger
	now        func() time.Time
}

// Options carries the optional collaborators of NewAPI.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Now overrides the clock used for "today"; defaults to time.Now.
	Now func() time.Time
}

// NewAPI constructs a handler set with shared services.
// population is usually a *warehouse.Populator.
func NewAPI(gdb *gorm.DB, population populationProvider, opts Options) *API {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &API{
		db:         gdb,
		operations: service.NewOperationService(gdb).WithMetrics(opts.Metrics),
		tracker:    service.NewTrackerService(gdb),
		pivots:     service.NewPivotService(gdb).WithClock(now),
		population: population,
		logger:     logging.OrNop(opts.Logger).Named("http"),
		now:        now,
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

func (a *API) today() time.Time {
	return a.now()
}
