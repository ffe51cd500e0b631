package models

import (
	"context"
	"fmt"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Establishment struct {
	ID   string `gorm:"primary_key;size:36" json:"id"`
	Name string `gorm:"size:100;not null" json:"name" binding:"required"`

	// price alert configuration
	ActiveSms           *bool               `gorm:"not null;default:false" json:"active_sms"`
	TypeSms             SmsType             `gorm:"type:enum('FOOD','FOOD & BEVERAGES');default:'FOOD'" json:"type_sms"`
	SmsVariationTrigger SmsVariationTrigger `gorm:"type:enum('ALL','5%','10%');default:'ALL'" json:"sms_variation_trigger"`

	// establishment-level inputs consumed by the financial report
	EmployeeCount     int             `gorm:"default:0" json:"employee_count"`
	MonthlyLaborCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_labor_cost"`
	MonthlyFixedCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_fixed_cost"`
	VariableCostRatio decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"variable_cost_ratio"`
	MonthlyOtherCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monthly_other_cost"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEstablishment struct {
	Name                string              `json:"name" validate:"required"`
	ActiveSms           bool                `json:"active_sms"`
	TypeSms             SmsType             `json:"type_sms"`
	SmsVariationTrigger SmsVariationTrigger `json:"sms_variation_trigger"`
	EmployeeCount       int                 `json:"employee_count"`
	MonthlyLaborCost    decimal.Decimal     `json:"monthly_labor_cost"`
	MonthlyFixedCost    decimal.Decimal     `json:"monthly_fixed_cost"`
	VariableCostRatio   decimal.Decimal     `json:"variable_cost_ratio"`
	MonthlyOtherCost    decimal.Decimal     `json:"monthly_other_cost"`
}

func establishmentCacheKey(id string) string {
	return "Establishment:" + id
}

// GetEstablishmentById reads through the redis cache; the row changes rarely
// but is consulted by every import for the alert configuration.
func GetEstablishmentById(ctx context.Context, id string) (*Establishment, error) {
	var establishment Establishment
	exists, err := config.GetRedisObject(establishmentCacheKey(id), &establishment)
	if err != nil {
		return nil, err
	}
	if exists {
		return &establishment, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).First(&establishment).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := config.SetRedisObject(establishmentCacheKey(id), &establishment, 0); err != nil {
		return nil, err
	}
	return &establishment, nil
}

// GetEstablishmentById2 is the tx-scoped variant used inside workflows.
func GetEstablishmentById2(tx *gorm.DB, id string) (*Establishment, error) {
	var establishment Establishment
	if err := tx.Where("id = ?", id).First(&establishment).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &establishment, nil
}

func CreateEstablishment(ctx context.Context, input *NewEstablishment) (*Establishment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	typeSms := input.TypeSms
	if typeSms == "" {
		typeSms = SmsTypeFood
	}
	variationTrigger := input.SmsVariationTrigger
	if variationTrigger == "" {
		variationTrigger = SmsVariationTriggerAll
	}

	activeSms := input.ActiveSms
	establishment := Establishment{
		ID:                  uuid.NewString(),
		Name:                input.Name,
		ActiveSms:           &activeSms,
		TypeSms:             typeSms,
		SmsVariationTrigger: variationTrigger,
		EmployeeCount:       input.EmployeeCount,
		MonthlyLaborCost:    input.MonthlyLaborCost,
		MonthlyFixedCost:    input.MonthlyFixedCost,
		VariableCostRatio:   input.VariableCostRatio,
		MonthlyOtherCost:    input.MonthlyOtherCost,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&establishment).Error; err != nil {
		return nil, err
	}
	return &establishment, nil
}

func UpdateEstablishmentSettings(ctx context.Context, id string, input *NewEstablishment) (*Establishment, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var establishment Establishment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&establishment).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	activeSms := input.ActiveSms
	establishment.Name = input.Name
	establishment.ActiveSms = &activeSms
	if input.TypeSms != "" {
		establishment.TypeSms = input.TypeSms
	}
	if input.SmsVariationTrigger != "" {
		establishment.SmsVariationTrigger = input.SmsVariationTrigger
	}
	establishment.EmployeeCount = input.EmployeeCount
	establishment.MonthlyLaborCost = input.MonthlyLaborCost
	establishment.MonthlyFixedCost = input.MonthlyFixedCost
	establishment.VariableCostRatio = input.VariableCostRatio
	establishment.MonthlyOtherCost = input.MonthlyOtherCost

	if err := db.WithContext(ctx).Save(&establishment).Error; err != nil {
		return nil, err
	}
	if err := config.RemoveRedisKey(establishmentCacheKey(id)); err != nil {
		return nil, fmt.Errorf("settings saved but cache invalidation failed: %w", err)
	}
	return &establishment, nil
}
