package db

import "time"

const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// PopulationRun 记录每次仓库填充的结果，在仓库事务之外写入，失败的运行同样保留。
type PopulationRun struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	TriggeredBy       string     `gorm:"size:16;not null" json:"triggered_by"`
	StartedAt         time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt        *time.Time `json:"finished_at"`
	Status            string     `gorm:"size:16;not null" json:"status"`
	Scanned           int        `gorm:"not null;default:0" json:"scanned"`
	Processed         int        `gorm:"not null;default:0" json:"processed"`
	Skipped           int        `gorm:"not null;default:0" json:"skipped"`
	Failed            int        `gorm:"not null;default:0" json:"failed"`
	DimensionsCreated int        `gorm:"not null;default:0" json:"dimensions_created"`
	ErrorMessage      string     `gorm:"type:text" json:"error_message,omitempty"`
}

func (PopulationRun) TableName() string {
	return "population_runs"
}
