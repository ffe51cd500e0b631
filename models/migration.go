package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or updates every table of the schema.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Establishment{},
		&MarketSupplier{},
		&MarketSupplierAlias{},
		&Supplier{},
		&MarketMasterArticle{},
		&MasterArticle{},
		&Invoice{},
		&Article{},
		&Recipe{},
		&Ingredient{},
		&IngredientHistory{},
		&RecipeHistory{},
		&Variation{},
		&ImportJob{},
		&MergeRequest{},
		&MergeRequestSource{},
		&FinancialReport{},
		&FinancialRecipe{},
		&FinancialIngredient{},
		&RecipeSale{},
		&LiveScore{},
	)
}
