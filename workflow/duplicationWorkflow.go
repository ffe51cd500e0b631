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

// DuplicateRecipe clones a recipe and its full composition. Every cloned
// ingredient and the clone itself get a fresh version-1 history entry dated
// at the duplication; the source's ledgers are not copied.
func DuplicateRecipe(ctx context.Context, logger *logrus.Logger, establishmentId string, recipeId int, newName string) (*models.Recipe, error) {
	if newName == "" {
		return nil, utils.NewValidationError("duplicate recipe name is required")
	}
	if err := utils.ValidateResourceId[models.Recipe](ctx, establishmentId, recipeId); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[models.Recipe](ctx, establishmentId, "name", newName, 0); err != nil {
		return nil, err
	}

	var clone *models.Recipe
	err := RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		source, err := models.GetRecipe(tx, establishmentId, recipeId)
		if err != nil {
			config.LogError(logger, "duplicationWorkflow.go", "DuplicateRecipe", "GetRecipe", recipeId, err)
			return utils.ErrorRecordNotFound
		}
		ingredients, err := models.ListRecipeIngredients(tx, source.ID)
		if err != nil {
			config.LogError(logger, "duplicationWorkflow.go", "DuplicateRecipe", "ListRecipeIngredients", source.ID, err)
			return err
		}

		duplicate := models.Recipe{
			EstablishmentId:  establishmentId,
			Name:             newName,
			Portions:         source.Portions,
			Saleable:         source.Saleable,
			Active:           source.Active,
			SalePriceExclTax: source.SalePriceExclTax,
			SalePriceInclTax: source.SalePriceInclTax,
		}
		if err := tx.Create(&duplicate).Error; err != nil {
			config.LogError(logger, "duplicationWorkflow.go", "DuplicateRecipe", "Create recipe", duplicate, err)
			return err
		}

		updates := make(map[int]decimal.Decimal, len(ingredients))
		for _, ingredient := range ingredients {
			cloneLine := models.Ingredient{
				EstablishmentId: establishmentId,
				RecipeId:        duplicate.ID,
				Variant:         ingredient.Variant,
				MasterArticleId: ingredient.MasterArticleId,
				SubRecipeId:     ingredient.SubRecipeId,
				Name:            ingredient.Name,
				Quantity:        ingredient.Quantity,
				Loss:            ingredient.Loss,
			}
			if err := tx.Create(&cloneLine).Error; err != nil {
				config.LogError(logger, "duplicationWorkflow.go", "DuplicateRecipe", "Create ingredient", cloneLine, err)
				return err
			}
			updates[cloneLine.ID] = ingredient.GrossUnitPrice
		}

		_, err = PropagateCosts(tx, logger, establishmentId, updates, []int{duplicate.ID},
			utils.TruncateToDay(time.Now()), models.HistoryTriggerManual, nil)
		if err != nil {
			return err
		}
		clone = &duplicate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}
