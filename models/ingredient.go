package models

import (
	"time"

	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ingredient is one line of a recipe's composition. Exactly one of
// MasterArticleId and SubRecipeId is set, according to Variant; FIXED lines
// set neither and carry their cost directly in UnitCost.
type Ingredient struct {
	ID              int               `gorm:"primary_key" json:"id"`
	EstablishmentId string            `gorm:"index;size:36;not null" json:"establishment_id" binding:"required"`
	RecipeId        int               `gorm:"index;not null" json:"recipe_id"`
	Variant         IngredientVariant `gorm:"type:enum('ARTICLE','SUBRECIPE','FIXED');not null" json:"variant"`
	MasterArticleId *int              `gorm:"index" json:"master_article_id"`
	SubRecipeId     *int              `gorm:"index" json:"sub_recipe_id"`
	Name            string            `gorm:"size:200;not null" json:"name"`
	Quantity        decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Loss            decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"loss"`

	// GrossUnitPrice is the pre-loss per-unit price. For ARTICLE lines it
	// tracks the master article's current price; for FIXED lines it is the
	// fixed amount itself; for SUBRECIPE lines the child's cost per portion.
	GrossUnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_unit_price"`

	// UnitCost mirrors the chronologically latest IngredientHistory entry.
	UnitCost  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	RecipeId        int               `json:"recipe_id" validate:"required"`
	Variant         IngredientVariant `json:"variant" validate:"required"`
	MasterArticleId *int              `json:"master_article_id"`
	SubRecipeId     *int              `json:"sub_recipe_id"`
	Name            string            `json:"name" validate:"required"`
	Quantity        decimal.Decimal   `json:"quantity"`
	Loss            decimal.Decimal   `json:"loss"`
	GrossUnitPrice  decimal.Decimal   `json:"gross_unit_price"`
}

// CheckVariant enforces the reference shape implied by the variant.
func (ing *Ingredient) CheckVariant() error {
	switch ing.Variant {
	case IngredientVariantArticle:
		if ing.MasterArticleId == nil || ing.SubRecipeId != nil {
			return utils.NewValidationError("ARTICLE ingredient must reference a master article and nothing else")
		}
	case IngredientVariantSubRecipe:
		if ing.SubRecipeId == nil || ing.MasterArticleId != nil {
			return utils.NewValidationError("SUBRECIPE ingredient must reference a recipe and nothing else")
		}
	case IngredientVariantFixed:
		if ing.MasterArticleId != nil || ing.SubRecipeId != nil {
			return utils.NewValidationError("FIXED ingredient must not reference an article or recipe")
		}
	default:
		return utils.NewValidationError("unknown ingredient variant %s", ing.Variant)
	}
	return nil
}

// LineCost applies the loss markup to a gross unit cost and scales by the line
// quantity: gross * (1 + loss/100) * quantity.
func (ing *Ingredient) LineCost(grossUnitCost decimal.Decimal) decimal.Decimal {
	lossFactor := decimal.NewFromInt(1).Add(ing.Loss.Div(decimal.NewFromInt(100)))
	return grossUnitCost.Mul(lossFactor).Mul(ing.Quantity)
}

func GetIngredient(tx *gorm.DB, establishmentId string, id int) (*Ingredient, error) {
	var ingredient Ingredient
	err := tx.Where("establishment_id = ?", establishmentId).First(&ingredient, id).Error
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// ListArticleIngredients returns every ARTICLE line across all recipes of the
// establishment that references the given master article.
func ListArticleIngredients(tx *gorm.DB, establishmentId string, masterArticleId int) ([]*Ingredient, error) {
	var ingredients []*Ingredient
	err := tx.Where("establishment_id = ? AND variant = ? AND master_article_id = ?",
		establishmentId, IngredientVariantArticle, masterArticleId).
		Order("id ASC").Find(&ingredients).Error
	return ingredients, err
}
