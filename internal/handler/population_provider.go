package handler

import (
	"context"

	"github.com/haullog/internal/db"
	"github.com/haullog/internal/warehouse"
)

type populationProvider interface {
	PopulateAll(ctx context.Context, trigger warehouse.Trigger) (warehouse.Summary, error)
	ListRuns(ctx context.Context, limit int) ([]db.PopulationRun, error)
}
