package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Recipe is a sellable or intermediate product. The cached cost fields always
// mirror the most recent RecipeHistory entry dated on or before now.
type Recipe struct {
	ID              int    `gorm:"primary_key" json:"id"`
	EstablishmentId string `gorm:"index;size:36;not null" json:"establishment_id" binding:"required"`
	Name            string `gorm:"size:200;not null" json:"name" binding:"required"`
	Portions        int    `gorm:"not null;default:1" json:"portions"`
	Saleable        *bool  `gorm:"not null;default:true" json:"saleable"`
	Active          *bool  `gorm:"not null;default:true" json:"active"`

	PurchaseCostTotal      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_cost_total"`
	PurchaseCostPerPortion decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"purchase_cost_per_portion"`
	SalePriceExclTax       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price_excl_tax"`
	SalePriceInclTax       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"sale_price_incl_tax"`
	Margin                 decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PortionCount never returns zero; legacy rows may carry 0 portions.
func (r *Recipe) PortionCount() decimal.Decimal {
	if r.Portions <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(r.Portions))
}

func (r *Recipe) IsSaleableAndActive() bool {
	return r.Saleable != nil && *r.Saleable && r.Active != nil && *r.Active
}

// ComputeMargin is the commercial margin percentage of one portion against the
// sale price excluding tax. Zero when no sale price is set.
func ComputeMargin(salePriceExclTax, purchaseCostPerPortion decimal.Decimal) decimal.Decimal {
	if salePriceExclTax.IsZero() {
		return decimal.Zero
	}
	return salePriceExclTax.Sub(purchaseCostPerPortion).
		Div(salePriceExclTax).
		Mul(decimal.NewFromInt(100))
}

func GetRecipe(tx *gorm.DB, establishmentId string, id int) (*Recipe, error) {
	var recipe Recipe
	err := tx.Where("establishment_id = ?", establishmentId).First(&recipe, id).Error
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// ListRecipeIngredients returns a recipe's composition ordered by id.
func ListRecipeIngredients(tx *gorm.DB, recipeId int) ([]*Ingredient, error) {
	var ingredients []*Ingredient
	err := tx.Where("recipe_id = ?", recipeId).Order("id ASC").Find(&ingredients).Error
	return ingredients, err
}

// ListSubRecipeIngredientsReferencing returns every SUBRECIPE ingredient line
// that uses the given recipe as its child.
func ListSubRecipeIngredientsReferencing(tx *gorm.DB, recipeId int) ([]*Ingredient, error) {
	var ingredients []*Ingredient
	err := tx.Where("variant = ? AND sub_recipe_id = ?", IngredientVariantSubRecipe, recipeId).
		Order("id ASC").Find(&ingredients).Error
	return ingredients, err
}
