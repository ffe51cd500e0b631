package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DeleteArticle removes one purchase observation, prunes the history entries
// it sourced, and cascades catalog removal when it was the last supporting
// article of its master article.
func DeleteArticle(ctx context.Context, logger *logrus.Logger, establishmentId string, articleId int) error {
	return RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		article, err := loadTenantArticle(tx, establishmentId, articleId)
		if err != nil {
			return err
		}
		return deleteArticles(tx, logger, establishmentId, []*models.Article{article})
	})
}

// DeleteInvoice removes a whole invoice and every purchase fact on it.
func DeleteInvoice(ctx context.Context, logger *logrus.Logger, establishmentId string, invoiceId int) error {
	return RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		var invoice models.Invoice
		err := tx.Where("establishment_id = ?", establishmentId).First(&invoice, invoiceId).Error
		if err != nil {
			config.LogError(logger, "deletionWorkflow.go", "DeleteInvoice", "First invoice", invoiceId, err)
			return utils.ErrorRecordNotFound
		}

		var articles []*models.Article
		if err := tx.Where("invoice_id = ?", invoice.ID).Order("id ASC").Find(&articles).Error; err != nil {
			config.LogError(logger, "deletionWorkflow.go", "DeleteInvoice", "Find articles", invoice.ID, err)
			return err
		}
		if err := deleteArticles(tx, logger, establishmentId, articles); err != nil {
			return err
		}
		return tx.Delete(&invoice).Error
	})
}

func loadTenantArticle(tx *gorm.DB, establishmentId string, articleId int) (*models.Article, error) {
	var article models.Article
	if err := tx.First(&article, articleId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	var masterArticle models.MasterArticle
	err := tx.Where("establishment_id = ?", establishmentId).First(&masterArticle, article.MasterArticleId).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &article, nil
}

// deleteArticles is the shared cascade core. For each removed article it
// prunes the import-sourced history entries, then either refreshes survivors
// or removes the orphaned master article with everything hanging off it.
func deleteArticles(tx *gorm.DB, logger *logrus.Logger, establishmentId string, articles []*models.Article) error {
	touched := make(map[int]bool)
	for _, article := range articles {
		if err := tx.Delete(&models.Article{}, article.ID).Error; err != nil {
			config.LogError(logger, "deletionWorkflow.go", "deleteArticles", "Delete article", article.ID, err)
			return err
		}
		touched[article.MasterArticleId] = true

		ingredients, err := models.ListArticleIngredients(tx, establishmentId, article.MasterArticleId)
		if err != nil {
			config.LogError(logger, "deletionWorkflow.go", "deleteArticles", "ListArticleIngredients", article.MasterArticleId, err)
			return err
		}
		for _, ingredient := range ingredients {
			err := tx.Where("ingredient_id = ? AND invoice_id = ?", ingredient.ID, article.InvoiceId).
				Delete(&models.IngredientHistory{}).Error
			if err != nil {
				config.LogError(logger, "deletionWorkflow.go", "deleteArticles", "Delete sourced history", ingredient.ID, err)
				return err
			}
		}
	}

	touchedIds := make([]int, 0, len(touched))
	for id := range touched {
		touchedIds = append(touchedIds, id)
	}
	sort.Ints(touchedIds)

	dirtyRecipes := make(map[int]bool)
	for _, masterArticleId := range touchedIds {
		var remaining int64
		err := tx.Model(&models.Article{}).Where("master_article_id = ?", masterArticleId).Count(&remaining).Error
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := removeMasterArticle(tx, logger, establishmentId, masterArticleId, dirtyRecipes); err != nil {
				return err
			}
			continue
		}

		if err := models.RefreshCurrentUnitPrice(tx, masterArticleId); err != nil {
			config.LogError(logger, "deletionWorkflow.go", "deleteArticles", "RefreshCurrentUnitPrice", masterArticleId, err)
			return err
		}
		ingredients, err := models.ListArticleIngredients(tx, establishmentId, masterArticleId)
		if err != nil {
			return err
		}
		for _, ingredient := range ingredients {
			if err := refreshIngredientCache(tx, logger, ingredient); err != nil {
				return err
			}
			dirtyRecipes[ingredient.RecipeId] = true
		}
	}

	if len(dirtyRecipes) == 0 {
		return nil
	}
	dirtyIds := make([]int, 0, len(dirtyRecipes))
	for id := range dirtyRecipes {
		dirtyIds = append(dirtyIds, id)
	}
	sort.Ints(dirtyIds)
	_, err := PropagateCosts(tx, logger, establishmentId, nil, dirtyIds,
		utils.TruncateToDay(time.Now()), models.HistoryTriggerManual, nil)
	return err
}

// removeMasterArticle deletes a master article that lost its last supporting
// purchase, every ingredient referencing it, and transitively every recipe
// left empty. Recipes that keep other ingredients go into dirtyRecipes for
// recompute instead.
func removeMasterArticle(tx *gorm.DB, logger *logrus.Logger, establishmentId string, masterArticleId int, dirtyRecipes map[int]bool) error {
	var masterArticle models.MasterArticle
	err := tx.Where("establishment_id = ?", establishmentId).First(&masterArticle, masterArticleId).Error
	if err != nil {
		return utils.ErrorRecordNotFound
	}

	ingredients, err := models.ListArticleIngredients(tx, establishmentId, masterArticleId)
	if err != nil {
		return err
	}
	worklist := make([]int, 0, len(ingredients))
	for _, ingredient := range ingredients {
		if err := deleteIngredientWithHistory(tx, ingredient.ID); err != nil {
			config.LogError(logger, "deletionWorkflow.go", "removeMasterArticle", "deleteIngredientWithHistory", ingredient.ID, err)
			return err
		}
		worklist = append(worklist, ingredient.RecipeId)
	}

	if err := models.SoftDeleteVariationsForArticles(tx, []int{masterArticleId}); err != nil {
		return err
	}
	if err := tx.Delete(&models.MasterArticle{}, masterArticleId).Error; err != nil {
		return err
	}

	// drop the market article too when this was its last tenant alias
	var aliasCount int64
	err = tx.Model(&models.MasterArticle{}).
		Where("market_master_article_id = ?", masterArticle.MarketMasterArticleId).
		Count(&aliasCount).Error
	if err != nil {
		return err
	}
	if aliasCount == 0 {
		if err := tx.Delete(&models.MarketMasterArticle{}, masterArticle.MarketMasterArticleId).Error; err != nil {
			return err
		}
	}

	for len(worklist) > 0 {
		recipeId := worklist[0]
		worklist = worklist[1:]

		var left int64
		if err := tx.Model(&models.Ingredient{}).Where("recipe_id = ?", recipeId).Count(&left).Error; err != nil {
			return err
		}
		if left > 0 {
			dirtyRecipes[recipeId] = true
			continue
		}

		delete(dirtyRecipes, recipeId)
		if err := tx.Where("recipe_id = ?", recipeId).Delete(&models.RecipeHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Recipe{}, recipeId).Error; err != nil {
			return err
		}

		references, err := models.ListSubRecipeIngredientsReferencing(tx, recipeId)
		if err != nil {
			return err
		}
		for _, reference := range references {
			if err := deleteIngredientWithHistory(tx, reference.ID); err != nil {
				return err
			}
			worklist = append(worklist, reference.RecipeId)
		}
	}
	return nil
}

func deleteIngredientWithHistory(tx *gorm.DB, ingredientId int) error {
	if err := tx.Where("ingredient_id = ?", ingredientId).Delete(&models.IngredientHistory{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Ingredient{}, ingredientId).Error
}
