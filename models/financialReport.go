package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinancialReport is the monthly profitability snapshot of one establishment.
// Month is the first day of the month at midnight UTC. Reports freeze the
// recipe costs as they stood at generation time; regenerating a month replaces
// the previous snapshot wholesale.
type FinancialReport struct {
	ID              int       `gorm:"primary_key" json:"id"`
	EstablishmentId string    `gorm:"index;size:36;not null" json:"establishment_id"`
	Month           time.Time `gorm:"index;not null" json:"month"`

	Revenue          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue"`
	PurchaseCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_cost"`
	LaborCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_cost"`
	FixedCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"fixed_cost"`
	VariableCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"variable_cost"`
	OtherCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"other_cost"`
	GrossMargin      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_margin"`
	NetResult        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_result"`
	FoodCostRatio    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"food_cost_ratio"`
	LaborCostRatio   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"labor_cost_ratio"`
	BreakEvenRevenue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"break_even_revenue"`

	// SafetyMargin is the revenue cushion above break-even; negative when the
	// month did not cover its fixed charges.
	SafetyMargin       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"safety_margin"`
	RevenuePerEmployee decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue_per_employee"`
	NetResultPerDish   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_result_per_dish"`

	// Scores grade the month on its own ratios, frozen with the snapshot. The
	// live scores are refreshed separately and may diverge once the month ages.
	PurchaseScore  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_score"`
	RecipeScore    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"recipe_score"`
	FinancialScore decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"financial_score"`
	GlobalScore    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"global_score"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// FinancialRecipe is a recipe's frozen monthly line inside a report.
type FinancialRecipe struct {
	ID                int             `gorm:"primary_key" json:"id"`
	FinancialReportId int             `gorm:"index;not null" json:"financial_report_id"`
	RecipeId          int             `gorm:"index;not null" json:"recipe_id"`
	Name              string          `gorm:"size:200;not null" json:"name"`
	QuantitySold      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_sold"`
	SalePriceExclTax  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price_excl_tax"`
	CostPerPortion    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_per_portion"`
	Revenue           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue"`
	Cost              decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	Margin            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FinancialIngredient freezes the composition behind a FinancialRecipe line so
// the report stays explainable after the live recipe changes.
type FinancialIngredient struct {
	ID                int               `gorm:"primary_key" json:"id"`
	FinancialRecipeId int               `gorm:"index;not null" json:"financial_recipe_id"`
	IngredientId      int               `gorm:"index;not null" json:"ingredient_id"`
	Name              string            `gorm:"size:200;not null" json:"name"`
	Variant           IngredientVariant `gorm:"type:enum('ARTICLE','SUBRECIPE','FIXED');not null" json:"variant"`
	Quantity          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitCost          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// RecipeSale is the monthly sales volume input consumed by report generation.
type RecipeSale struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	RecipeId        int             `gorm:"index;not null" json:"recipe_id"`
	Month           time.Time       `gorm:"index;not null" json:"month"`
	QuantitySold    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_sold"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetFinancialReport(tx *gorm.DB, establishmentId string, month time.Time) (*FinancialReport, error) {
	var report FinancialReport
	err := tx.Where("establishment_id = ? AND month = ?", establishmentId, month).First(&report).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// DeleteFinancialReport removes a report snapshot and its frozen lines.
func DeleteFinancialReport(tx *gorm.DB, report *FinancialReport) error {
	var recipeIds []int
	err := tx.Model(&FinancialRecipe{}).
		Where("financial_report_id = ?", report.ID).
		Pluck("id", &recipeIds).Error
	if err != nil {
		return err
	}
	if len(recipeIds) > 0 {
		if err := tx.Where("financial_recipe_id IN ?", recipeIds).
			Delete(&FinancialIngredient{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("financial_report_id = ?", report.ID).
		Delete(&FinancialRecipe{}).Error; err != nil {
		return err
	}
	return tx.Delete(report).Error
}
