package workflow

import (
	"context"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ManualIngredientEdit is an operator change to one ingredient line. Nil
// fields are left untouched. Date defaults to today.
type ManualIngredientEdit struct {
	Name           *string          `json:"name"`
	Quantity       *decimal.Decimal `json:"quantity"`
	Loss           *decimal.Decimal `json:"loss"`
	GrossUnitPrice *decimal.Decimal `json:"gross_unit_price"`
	Date           *time.Time       `json:"date"`
}

type ManualRecipeEdit struct {
	Name             *string          `json:"name"`
	Portions         *int             `json:"portions"`
	Saleable         *bool            `json:"saleable"`
	Active           *bool            `json:"active"`
	SalePriceExclTax *decimal.Decimal `json:"sale_price_excl_tax"`
	SalePriceInclTax *decimal.Decimal `json:"sale_price_incl_tax"`
	Date             *time.Time       `json:"date"`
}

func editDate(date *time.Time) time.Time {
	if date != nil {
		return utils.TruncateToDay(*date)
	}
	return utils.TruncateToDay(time.Now())
}

// EditIngredient applies an operator change to one ingredient and propagates
// the new cost through every dependent recipe with a manual checkpoint.
func EditIngredient(ctx context.Context, logger *logrus.Logger, establishmentId string, ingredientId int, edit *ManualIngredientEdit) error {
	return RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		ingredient, err := models.GetIngredient(tx, establishmentId, ingredientId)
		if err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "EditIngredient", "GetIngredient", ingredientId, err)
			return utils.ErrorRecordNotFound
		}

		if edit.Name != nil {
			ingredient.Name = *edit.Name
		}
		if edit.Quantity != nil {
			ingredient.Quantity = *edit.Quantity
		}
		if edit.Loss != nil {
			ingredient.Loss = *edit.Loss
		}
		gross := ingredient.GrossUnitPrice
		if edit.GrossUnitPrice != nil {
			if ingredient.Variant == models.IngredientVariantSubRecipe {
				return utils.NewValidationError("sub-recipe ingredient cost is derived, not editable")
			}
			gross = *edit.GrossUnitPrice
		}
		if err := tx.Save(ingredient).Error; err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "EditIngredient", "Save", ingredient, err)
			return err
		}

		_, err = PropagateCosts(tx, logger, establishmentId,
			map[int]decimal.Decimal{ingredient.ID: gross}, nil,
			editDate(edit.Date), models.HistoryTriggerManual, nil)
		return err
	})
}

// EditRecipe applies an operator change to a recipe and recomputes it and its
// dependents. Portion or sale-price changes shift per-portion cost and margin
// even when no ingredient moved.
func EditRecipe(ctx context.Context, logger *logrus.Logger, establishmentId string, recipeId int, edit *ManualRecipeEdit) error {
	return RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		recipe, err := models.GetRecipe(tx, establishmentId, recipeId)
		if err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "EditRecipe", "GetRecipe", recipeId, err)
			return utils.ErrorRecordNotFound
		}

		if edit.Name != nil {
			recipe.Name = *edit.Name
		}
		if edit.Portions != nil {
			if *edit.Portions <= 0 {
				return utils.NewValidationError("portions must be positive")
			}
			recipe.Portions = *edit.Portions
		}
		if edit.Saleable != nil {
			recipe.Saleable = edit.Saleable
		}
		if edit.Active != nil {
			recipe.Active = edit.Active
		}
		if edit.SalePriceExclTax != nil {
			recipe.SalePriceExclTax = *edit.SalePriceExclTax
		}
		if edit.SalePriceInclTax != nil {
			recipe.SalePriceInclTax = *edit.SalePriceInclTax
		}
		if err := tx.Save(recipe).Error; err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "EditRecipe", "Save", recipe, err)
			return err
		}

		_, err = PropagateCosts(tx, logger, establishmentId, nil, []int{recipe.ID},
			editDate(edit.Date), models.HistoryTriggerManual, nil)
		return err
	})
}

// AddIngredient appends a line to a recipe, seeds its first history entry and
// recomputes the recipe chain.
func AddIngredient(ctx context.Context, logger *logrus.Logger, establishmentId string, input *models.NewIngredient) (*models.Ingredient, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var created *models.Ingredient
	err := RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		recipe, err := models.GetRecipe(tx, establishmentId, input.RecipeId)
		if err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "AddIngredient", "GetRecipe", input.RecipeId, err)
			return utils.ErrorRecordNotFound
		}

		ingredient := models.Ingredient{
			EstablishmentId: establishmentId,
			RecipeId:        recipe.ID,
			Variant:         input.Variant,
			MasterArticleId: input.MasterArticleId,
			SubRecipeId:     input.SubRecipeId,
			Name:            input.Name,
			Quantity:        input.Quantity,
			Loss:            input.Loss,
		}
		if err := ingredient.CheckVariant(); err != nil {
			return err
		}

		gross := input.GrossUnitPrice
		switch ingredient.Variant {
		case models.IngredientVariantArticle:
			var masterArticle models.MasterArticle
			err := tx.Where("establishment_id = ?", establishmentId).First(&masterArticle, *input.MasterArticleId).Error
			if err != nil {
				return utils.ErrorRecordNotFound
			}
			gross = masterArticle.CurrentUnitPrice
		case models.IngredientVariantSubRecipe:
			child, err := models.GetRecipe(tx, establishmentId, *input.SubRecipeId)
			if err != nil {
				return utils.ErrorRecordNotFound
			}
			gross = child.PurchaseCostPerPortion
		}

		if err := tx.Create(&ingredient).Error; err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "AddIngredient", "Create", ingredient, err)
			return err
		}

		_, err = PropagateCosts(tx, logger, establishmentId,
			map[int]decimal.Decimal{ingredient.ID: gross}, nil,
			utils.TruncateToDay(time.Now()), models.HistoryTriggerManual, nil)
		if err != nil {
			return err
		}
		created = &ingredient
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateRecipe registers an empty recipe. Ingredients come in through
// AddIngredient so every line gets a seeded history entry.
func CreateRecipe(ctx context.Context, logger *logrus.Logger, establishmentId string, name string, portions int,
	saleable, active bool, salePriceExclTax, salePriceInclTax decimal.Decimal) (*models.Recipe, error) {

	if name == "" {
		return nil, utils.NewValidationError("recipe name is required")
	}
	if portions <= 0 {
		return nil, utils.NewValidationError("portions must be positive")
	}
	if err := utils.ValidateUnique[models.Recipe](ctx, establishmentId, "name", name, 0); err != nil {
		return nil, err
	}

	var created *models.Recipe
	err := RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		recipe := models.Recipe{
			EstablishmentId:  establishmentId,
			Name:             name,
			Portions:         portions,
			Saleable:         &saleable,
			Active:           &active,
			SalePriceExclTax: salePriceExclTax,
			SalePriceInclTax: salePriceInclTax,
		}
		if err := tx.Create(&recipe).Error; err != nil {
			config.LogError(logger, "manualEditWorkflow.go", "CreateRecipe", "Create", recipe, err)
			return err
		}
		created = &recipe
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
