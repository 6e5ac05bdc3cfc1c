// Package warehouse 将日常作业记录装载为星型模型：维度解析、事实装载以及整体编排。
package warehouse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haullog/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DimensionKeys 是一条记录解析后的维度代理键，FacilitatorKey 可为空。
type DimensionKeys struct {
	DateKey        int
	EquipmentKey   uint
	SiteKey        uint
	FacilitatorKey *uint
}

// Resolver 对四类维度执行查找或创建，并统计本轮新建的行数。
// 唯一索引是并发下的最终保证，查找只是减少冲突。
// 一个 Resolver 对应一个事务，不可并发使用。
type Resolver struct {
	created map[string]int
}

// NewResolver 构造 Resolver
func NewResolver() *Resolver {
	return &Resolver{created: map[string]int{}}
}

// Resolve 在 tx 中解析 op 引用的维度，返回的键在同一事务内可见。
func (r *Resolver) Resolve(tx *gorm.DB, op *db.DailyOperation) (DimensionKeys, error) {
	var keys DimensionKeys

	date := db.NewDimDate(op.OperationDate)
	dateRow, created, err := findOrCreate(tx, map[string]interface{}{"date_key": date.DateKey}, &date)
	if err != nil {
		return keys, fmt.Errorf("resolve date %d: %w", date.DateKey, err)
	}
	r.count(db.DimensionDate, created)
	keys.DateKey = dateRow.DateKey

	equipment := db.DimEquipment{
		TruckType:     strings.TrimSpace(op.TruckType),
		EquipmentMake: strings.TrimSpace(op.EquipmentMake),
	}
	equipmentRow, created, err := findOrCreate(tx, map[string]interface{}{
		"truck_type":     equipment.TruckType,
		"equipment_make": equipment.EquipmentMake,
	}, &equipment)
	if err != nil {
		return keys, fmt.Errorf("resolve equipment %s: %w", equipment.Identity(), err)
	}
	r.count(db.DimensionEquipment, created)
	keys.EquipmentKey = equipmentRow.EquipmentKey

	site := db.DimSite{SiteLocation: strings.TrimSpace(op.SiteLocation)}
	siteRow, created, err := findOrCreate(tx, map[string]interface{}{"site_location": site.SiteLocation}, &site)
	if err != nil {
		return keys, fmt.Errorf("resolve site %q: %w", site.SiteLocation, err)
	}
	r.count(db.DimensionSite, created)
	keys.SiteKey = siteRow.SiteKey

	if name := strings.TrimSpace(op.FacilitatorName); name != "" {
		facilitator := db.DimFacilitator{FacilitatorName: name}
		facilitatorRow, created, err := findOrCreate(tx, map[string]interface{}{"facilitator_name": name}, &facilitator)
		if err != nil {
			return keys, fmt.Errorf("resolve facilitator %q: %w", name, err)
		}
		r.count(db.DimensionFacilitator, created)
		key := facilitatorRow.FacilitatorKey
		keys.FacilitatorKey = &key
	}

	return keys, nil
}

// Created 返回按维度统计的新建行数副本。
func (r *Resolver) Created() map[string]int {
	out := make(map[string]int, len(r.created))
	for k, v := range r.created {
		out[k] = v
	}
	return out
}

func (r *Resolver) count(dimension string, created bool) {
	if created {
		r.created[dimension]++
	}
}

// findOrCreate 先按自然键查找；未命中时 INSERT ... ON CONFLICT DO NOTHING，
// 若未插入（被其他写入方抢先）则重新读取胜出的行。
func findOrCreate[T any](tx *gorm.DB, natural map[string]interface{}, fresh *T) (*T, bool, error) {
	var existing T
	err := tx.Where(natural).Take(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(fresh)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return fresh, true, nil
	}

	var winner T
	if err := tx.Where(natural).Take(&winner).Error; err != nil {
		return nil, false, fmt.Errorf("reload after conflict: %w", err)
	}
	return &winner, false, nil
}
