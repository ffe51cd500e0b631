package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/chefbooks/foodcost_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeds a demo establishment with one recipe chain and a first invoice, then
// runs the import so the ledgers and caches are populated.
func main() {
	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	utils.ErrorPanic(models.MigrateTable(db))

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{
		Name:                "Demo Bistro",
		ActiveSms:           true,
		TypeSms:             models.SmsTypeFoodAndBeverages,
		SmsVariationTrigger: models.SmsVariationTriggerAll,
		EmployeeCount:       6,
		MonthlyLaborCost:    decimal.NewFromInt(18000),
		MonthlyFixedCost:    decimal.NewFromInt(9000),
		VariableCostRatio:   decimal.NewFromInt(8),
		MonthlyOtherCost:    decimal.NewFromInt(1500),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create establishment failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("establishment %s\n", establishment.ID)

	sauce, err := workflow.CreateRecipe(ctx, logger, establishment.ID, "Sauce tomate maison", 8,
		false, true, decimal.Zero, decimal.Zero)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create sauce failed: %v\n", err)
		os.Exit(1)
	}
	pizza, err := workflow.CreateRecipe(ctx, logger, establishment.ID, "Pizza margherita", 1,
		true, true, decimal.NewFromFloat(12.50), decimal.NewFromFloat(13.75))
	if err != nil {
		fmt.Fprintf(os.Stderr, "create pizza failed: %v\n", err)
		os.Exit(1)
	}

	// the first invoice creates the master articles
	input := &models.InvoiceImportInput{
		SupplierName:  "METRO Cash & Carry SAS",
		SupplierLabel: models.SupplierLabelFood,
		InvoiceNumber: "INV-2026-0001",
		Date:          time.Now().AddDate(0, 0, -2),
		TotalExclTax:  decimal.NewFromFloat(31.40),
		TotalInclTax:  decimal.NewFromFloat(34.54),
		TotalVat:      decimal.NewFromFloat(3.14),
		Lines: []*models.InvoiceLineInput{
			{ProductName: "Tomate grappe", Unit: "kg", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromFloat(2.20), Total: decimal.NewFromInt(22)},
			{ProductName: "Mozzarella di bufala", Unit: "kg", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(4.70), Total: decimal.NewFromFloat(9.40)},
		},
	}
	var job *models.ImportJob
	err = workflow.RunMutation(ctx, logger, establishment.ID, func(tx *gorm.DB) error {
		var err error
		job, err = models.CreateImportJob(tx, establishment.ID, input, "seed-dev")
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create import job failed: %v\n", err)
		os.Exit(1)
	}
	if err := workflow.RunInvoiceImport(ctx, logger, establishment.ID, job.ID); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	// compose the recipes from the freshly created catalog
	var tomato, mozzarella models.MasterArticle
	if err := db.Where("establishment_id = ? AND name LIKE ?", establishment.ID, "%Tomate%").First(&tomato).Error; err != nil {
		fmt.Fprintf(os.Stderr, "tomato lookup failed: %v\n", err)
		os.Exit(1)
	}
	if err := db.Where("establishment_id = ? AND name LIKE ?", establishment.ID, "%Mozzarella%").First(&mozzarella).Error; err != nil {
		fmt.Fprintf(os.Stderr, "mozzarella lookup failed: %v\n", err)
		os.Exit(1)
	}

	seedLines := []*models.NewIngredient{
		{RecipeId: sauce.ID, Variant: models.IngredientVariantArticle, MasterArticleId: &tomato.ID,
			Name: "Tomate grappe", Quantity: decimal.NewFromInt(3), Loss: decimal.NewFromInt(5)},
		{RecipeId: pizza.ID, Variant: models.IngredientVariantSubRecipe, SubRecipeId: &sauce.ID,
			Name: "Sauce tomate maison", Quantity: decimal.NewFromInt(1)},
		{RecipeId: pizza.ID, Variant: models.IngredientVariantArticle, MasterArticleId: &mozzarella.ID,
			Name: "Mozzarella di bufala", Quantity: decimal.NewFromFloat(0.125), Loss: decimal.NewFromInt(2)},
		{RecipeId: pizza.ID, Variant: models.IngredientVariantFixed,
			Name: "Emballage", Quantity: decimal.NewFromInt(1), GrossUnitPrice: decimal.NewFromFloat(0.30)},
	}
	for _, line := range seedLines {
		if _, err := workflow.AddIngredient(ctx, logger, establishment.ID, line); err != nil {
			fmt.Fprintf(os.Stderr, "add ingredient %q failed: %v\n", line.Name, err)
			os.Exit(1)
		}
	}

	// raise the alert trigger once seeding is done so the demo data does not
	// fire an alert on every future price move
	if _, err := models.UpdateEstablishmentSettings(ctx, establishment.ID, &models.NewEstablishment{
		Name:                establishment.Name,
		ActiveSms:           true,
		TypeSms:             establishment.TypeSms,
		SmsVariationTrigger: models.SmsVariationTrigger5,
		EmployeeCount:       establishment.EmployeeCount,
		MonthlyLaborCost:    establishment.MonthlyLaborCost,
		MonthlyFixedCost:    establishment.MonthlyFixedCost,
		VariableCostRatio:   establishment.VariableCostRatio,
		MonthlyOtherCost:    establishment.MonthlyOtherCost,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "settings update failed: %v\n", err)
		os.Exit(1)
	}

	recipes, err := utils.FetchAllModels[models.Recipe](ctx, establishment.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recipe listing failed: %v\n", err)
		os.Exit(1)
	}
	for _, recipe := range recipes {
		fmt.Printf("recipe %d %q: %s per portion\n", recipe.ID, recipe.Name, recipe.PurchaseCostPerPortion)
	}
}
