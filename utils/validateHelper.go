package utils

import (
	"context"
	"reflect"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of a payload struct and wraps the
// outcome as a ValidationError.
func ValidateStruct(payload interface{}) error {
	if err := validate.Struct(payload); err != nil {
		if ves, ok := err.(validator.ValidationErrors); ok && len(ves) > 0 {
			return NewValidationError("field %s failed on %s", ves[0].Field(), ves[0].Tag())
		}
		return NewValidationError("%s", err.Error())
	}
	return nil
}

// check if id exists within the establishment, return RecordNotFound error
func ValidateResourceId[T any](ctx context.Context, establishmentId string, id interface{}) error {

	count, err := ResourceCountWhere[T](ctx, establishmentId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

func ValidateUnique[T any](ctx context.Context, establishmentId string, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, establishmentId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, establishmentId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return NewValidationError("duplicate %s", column)
	}
	return nil
}

// count records, using WHERE establishment_id = ? AND $condition
// establishment_id can be blank for market-level (cross-tenant) tables
func ResourceCountWhere[T any](ctx context.Context, establishmentId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if establishmentId != "" {
		dbCtx = dbCtx.Where("establishment_id = ?", establishmentId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
