package utils

import (
	"context"

	"github.com/chefbooks/foodcost_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db by primary key, no tenant scoping
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch model from db
// (establishment_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, establishmentId string, id int, associations ...string) (*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("establishment_id = ?", establishmentId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &result, nil
}

// fetch all models of the establishment
func FetchAllModels[T any](ctx context.Context, establishmentId string, associations ...string) ([]*T, error) {

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("establishment_id = ?", establishmentId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	err := dbCtx.Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FetchAllPaginated loads every row matching the query in bounded pages so a
// large history never turns into one unbounded read. The query must carry a
// deterministic ORDER BY.
func FetchAllPaginated[T any](query *gorm.DB, limit int) ([]*T, error) {
	if limit <= 0 {
		limit = config.FetchLimit
	}
	var all []*T
	for page := 0; ; page++ {
		var batch []*T
		if err := query.Session(&gorm.Session{}).Limit(limit).Offset(page * limit).Find(&batch).Error; err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < limit {
			break
		}
	}
	return all, nil
}
