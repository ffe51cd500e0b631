package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IngredientHistory is the dated cost ledger of one ingredient line. Versions
// are decimals because back-dated corrections on legacy ledgers left
// fractional versions behind; new entries always use floor(max)+1.
// InvoiceId is set for import-triggered entries and nil for manual ones.
type IngredientHistory struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	IngredientId    int             `gorm:"index;not null" json:"ingredient_id"`
	Version         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"version"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	Trigger         HistoryTrigger  `gorm:"type:enum('import','manual');not null" json:"trigger"`
	InvoiceId       *int            `gorm:"index" json:"invoice_id"`

	GrossUnitPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"gross_unit_price"`
	UnitCost           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	LossValue          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"loss_value"`
	UnitCostPerPortion decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost_per_portion"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecipeHistory mirrors IngredientHistory at the recipe level, recording the
// recomputed totals and margin after each change.
type RecipeHistory struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	RecipeId        int             `gorm:"index;not null" json:"recipe_id"`
	Version         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"version"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	Trigger         HistoryTrigger  `gorm:"type:enum('import','manual');not null" json:"trigger"`
	InvoiceId       *int            `gorm:"index" json:"invoice_id"`

	PurchaseCostTotal      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"purchase_cost_total"`
	PurchaseCostPerPortion decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"purchase_cost_per_portion"`
	Margin                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin"`
	ContainsSubRecipe      *bool           `gorm:"not null;default:false" json:"contains_sub_recipe"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListIngredientHistory returns the full ledger of one ingredient ordered by
// date, oldest first. Ties on date break by id so replay order is stable.
func ListIngredientHistory(tx *gorm.DB, ingredientId int) ([]*IngredientHistory, error) {
	var entries []*IngredientHistory
	err := tx.Where("ingredient_id = ?", ingredientId).
		Order("date ASC, id ASC").Find(&entries).Error
	return entries, err
}

func ListRecipeHistory(tx *gorm.DB, recipeId int) ([]*RecipeHistory, error) {
	var entries []*RecipeHistory
	err := tx.Where("recipe_id = ?", recipeId).
		Order("date ASC, id ASC").Find(&entries).Error
	return entries, err
}

// LatestIngredientHistory returns the chronologically last ledger entry, nil
// when the ledger is empty. The owner's cached cost mirrors this entry.
func LatestIngredientHistory(tx *gorm.DB, ingredientId int) (*IngredientHistory, error) {
	var entry IngredientHistory
	err := tx.Where("ingredient_id = ?", ingredientId).
		Order("date DESC, id DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func LatestRecipeHistory(tx *gorm.DB, recipeId int) (*RecipeHistory, error) {
	var entry RecipeHistory
	err := tx.Where("recipe_id = ?", recipeId).
		Order("date DESC, id DESC").First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListIngredientHistoryByInvoice returns the ledger entries sourced from one
// invoice.
func ListIngredientHistoryByInvoice(tx *gorm.DB, invoiceId int) ([]*IngredientHistory, error) {
	var entries []*IngredientHistory
	err := tx.Where("invoice_id = ?", invoiceId).
		Order("date ASC, id ASC").Find(&entries).Error
	return entries, err
}
