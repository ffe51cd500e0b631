package workflow

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Exercises the catalog write paths around the import pipeline: manual edits,
// duplication, and the deletion cascade when an invoice's last purchase facts
// disappear.
//
// Requires docker. Run with:
//
//	INTEGRATION_TESTS=1 go test ./workflow -run TestInvoiceDeletionCascade
func TestInvoiceDeletionCascade(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run docker-backed integration tests")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })
	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "foodcost_test")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+redisPort)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{Name: "Demo Bistro"})
	if err != nil {
		t.Fatalf("create establishment: %v", err)
	}

	day := utils.TruncateToDay(time.Now().UTC()).AddDate(0, 0, -7)
	runImport(t, ctx, logger, establishment.ID, invoicePayload("FAC-2001", day, "5.00"))

	var masterArticle models.MasterArticle
	err = db.Where("establishment_id = ? AND name LIKE ?", establishment.ID, "Tomate%").
		First(&masterArticle).Error
	if err != nil {
		t.Fatalf("master article not created: %v", err)
	}

	recipe, err := CreateRecipe(ctx, logger, establishment.ID, "Soupe de tomate", 2,
		false, true, decimal.Zero, decimal.Zero)
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	ingredient, err := AddIngredient(ctx, logger, establishment.ID, &models.NewIngredient{
		RecipeId:        recipe.ID,
		Variant:         models.IngredientVariantArticle,
		MasterArticleId: &masterArticle.ID,
		Name:            "Tomate grappe",
		Quantity:        decimal.RequireFromString("1"),
	})
	if err != nil {
		t.Fatalf("add ingredient: %v", err)
	}

	// 5.00 * 1.10 * 1 = 5.50 once the loss is set
	loss := decimal.RequireFromString("10")
	if err := EditIngredient(ctx, logger, establishment.ID, ingredient.ID, &ManualIngredientEdit{Loss: &loss}); err != nil {
		t.Fatalf("edit ingredient: %v", err)
	}
	reloaded, err := models.GetIngredient(db, establishment.ID, ingredient.ID)
	if err != nil {
		t.Fatalf("reload ingredient: %v", err)
	}
	if !reloaded.UnitCost.Equal(decimal.RequireFromString("5.50")) {
		t.Fatalf("expected unit cost 5.50 after loss edit, got %s", reloaded.UnitCost)
	}

	salePrice := decimal.RequireFromString("11")
	err = EditRecipe(ctx, logger, establishment.ID, recipe.ID, &ManualRecipeEdit{
		Saleable:         utils.NewTrue(),
		SalePriceExclTax: &salePrice,
	})
	if err != nil {
		t.Fatalf("edit recipe: %v", err)
	}
	edited, err := models.GetRecipe(db, establishment.ID, recipe.ID)
	if err != nil {
		t.Fatalf("reload recipe: %v", err)
	}
	if !edited.PurchaseCostPerPortion.Equal(decimal.RequireFromString("2.75")) {
		t.Fatalf("expected cost per portion 2.75, got %s", edited.PurchaseCostPerPortion)
	}
	if !edited.Margin.Equal(decimal.RequireFromString("75")) {
		t.Fatalf("expected margin 75, got %s", edited.Margin)
	}

	duplicate, err := DuplicateRecipe(ctx, logger, establishment.ID, recipe.ID, "Soupe de tomate (copie)")
	if err != nil {
		t.Fatalf("duplicate recipe: %v", err)
	}
	_, err = AddIngredient(ctx, logger, establishment.ID, &models.NewIngredient{
		RecipeId:       duplicate.ID,
		Variant:        models.IngredientVariantFixed,
		Name:           "Emballage",
		Quantity:       decimal.RequireFromString("1"),
		GrossUnitPrice: decimal.RequireFromString("0.40"),
	})
	if err != nil {
		t.Fatalf("add fixed ingredient: %v", err)
	}

	var invoice models.Invoice
	err = db.Where("establishment_id = ? AND invoice_number = ?", establishment.ID, "FAC-2001").
		First(&invoice).Error
	if err != nil {
		t.Fatalf("invoice lookup: %v", err)
	}

	// Deleting the only invoice orphans the master article: the cascade must
	// take the article, the market product, both tomato lines and the recipe
	// left empty, without leaving ledger rows behind.
	if err := DeleteInvoice(ctx, logger, establishment.ID, invoice.ID); err != nil {
		t.Fatalf("delete invoice: %v", err)
	}

	sourced, err := models.ListIngredientHistoryByInvoice(db, invoice.ID)
	if err != nil {
		t.Fatalf("list sourced history: %v", err)
	}
	if len(sourced) != 0 {
		t.Fatalf("expected no ledger entries sourced from the deleted invoice, got %d", len(sourced))
	}

	var articleCount int64
	if err := db.Model(&models.Article{}).Where("master_article_id = ?", masterArticle.ID).Count(&articleCount).Error; err != nil {
		t.Fatalf("count articles: %v", err)
	}
	if articleCount != 0 {
		t.Fatalf("expected purchase facts gone, got %d", articleCount)
	}
	var masterCount int64
	if err := db.Model(&models.MasterArticle{}).Where("establishment_id = ?", establishment.ID).Count(&masterCount).Error; err != nil {
		t.Fatalf("count master articles: %v", err)
	}
	if masterCount != 0 {
		t.Fatalf("expected orphaned master article removed, got %d left", masterCount)
	}
	var marketCount int64
	if err := db.Model(&models.MarketMasterArticle{}).Where("id = ?", masterArticle.MarketMasterArticleId).Count(&marketCount).Error; err != nil {
		t.Fatalf("count market articles: %v", err)
	}
	if marketCount != 0 {
		t.Fatal("market product must disappear with its last tenant alias")
	}

	if _, err := models.GetRecipe(db, establishment.ID, recipe.ID); err == nil {
		t.Fatal("recipe left empty by the cascade must be deleted")
	}
	survivor, err := models.GetRecipe(db, establishment.ID, duplicate.ID)
	if err != nil {
		t.Fatalf("duplicate must survive, it still has a fixed line: %v", err)
	}
	if !survivor.PurchaseCostPerPortion.Equal(decimal.RequireFromString("0.20")) {
		t.Fatalf("expected survivor cost per portion 0.20, got %s", survivor.PurchaseCostPerPortion)
	}

	var orphanedEntries int64
	err = db.Model(&models.IngredientHistory{}).
		Where("establishment_id = ?", establishment.ID).
		Where("ingredient_id NOT IN (?)", db.Model(&models.Ingredient{}).Select("id")).
		Count(&orphanedEntries).Error
	if err != nil {
		t.Fatalf("count orphaned ingredient history: %v", err)
	}
	if orphanedEntries != 0 {
		t.Fatalf("found %d ingredient ledger rows without an owner", orphanedEntries)
	}
	var orphanedCheckpoints int64
	err = db.Model(&models.RecipeHistory{}).
		Where("establishment_id = ?", establishment.ID).
		Where("recipe_id NOT IN (?)", db.Model(&models.Recipe{}).Select("id")).
		Count(&orphanedCheckpoints).Error
	if err != nil {
		t.Fatalf("count orphaned recipe history: %v", err)
	}
	if orphanedCheckpoints != 0 {
		t.Fatalf("found %d recipe ledger rows without an owner", orphanedCheckpoints)
	}
}

// Merges two duplicate market suppliers into a canonical one and verifies
// that purchase observations are conserved: same article total before and
// after, one surviving market product, every invoice re-pointed.
func TestSupplierMergeConservation(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run docker-backed integration tests")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })
	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "foodcost_test")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+redisPort)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{Name: "Demo Bistro"})
	if err != nil {
		t.Fatalf("create establishment: %v", err)
	}

	today := utils.TruncateToDay(time.Now().UTC())
	runImport(t, ctx, logger, establishment.ID,
		supplierInvoicePayload("METRO Cash & Carry SAS", "FAC-3001", today.AddDate(0, 0, -10), "6.00", "10", "60"))
	runImport(t, ctx, logger, establishment.ID,
		supplierInvoicePayload("Transgourmet", "FAC-3002", today.AddDate(0, 0, -5), "7.00", "5", "35"))
	runImport(t, ctx, logger, establishment.ID,
		supplierInvoicePayload("Pomona", "FAC-3003", today.AddDate(0, 0, -2), "8.00", "2", "16"))

	totalBefore := sumArticleTotals(t, db)
	if !totalBefore.Equal(decimal.RequireFromString("111")) {
		t.Fatalf("expected recorded purchases of 111 before the merge, got %s", totalBefore)
	}

	metro := marketSupplierByName(t, db, "METRO Cash & Carry")
	transgourmet := marketSupplierByName(t, db, "Transgourmet")
	pomona := marketSupplierByName(t, db, "Pomona")

	var request *models.MergeRequest
	err = db.Transaction(func(tx *gorm.DB) error {
		var err error
		request, err = models.CreateMergeRequest(tx, &models.NewMergeRequest{
			TargetSupplierId:  metro.ID,
			SourceSupplierIds: []int{transgourmet.ID, pomona.ID},
			RequestedBy:       "ops",
		})
		return err
	})
	if err != nil {
		t.Fatalf("create merge request: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := models.ReviewMergeRequest(tx, request.ID, true, "reviewer")
		return err
	})
	if err != nil {
		t.Fatalf("review merge request: %v", err)
	}

	if err := ExecuteMergeRequest(ctx, logger, request.ID); err == nil {
		t.Fatal("merge execution without an admin context must be rejected")
	}
	adminCtx := utils.SetIsAdminInContext(ctx, true)
	if err := ExecuteMergeRequest(adminCtx, logger, request.ID); err != nil {
		t.Fatalf("execute merge request: %v", err)
	}

	completed, err := models.GetMergeRequest(db, request.ID)
	if err != nil {
		t.Fatalf("reload merge request: %v", err)
	}
	if completed.Status != models.MergeRequestStatusCompleted {
		t.Fatalf("expected completed request, got %s", completed.Status)
	}

	totalAfter := sumArticleTotals(t, db)
	if !totalAfter.Equal(totalBefore) {
		t.Fatalf("merge must conserve recorded purchases: %s before, %s after", totalBefore, totalAfter)
	}

	var marketSupplierCount int64
	if err := db.Model(&models.MarketSupplier{}).Count(&marketSupplierCount).Error; err != nil {
		t.Fatalf("count market suppliers: %v", err)
	}
	if marketSupplierCount != 1 {
		t.Fatalf("expected one surviving market supplier, got %d", marketSupplierCount)
	}
	var products []*models.MarketMasterArticle
	if err := db.Find(&products).Error; err != nil {
		t.Fatalf("list market products: %v", err)
	}
	if len(products) != 1 || products[0].Name != "Tomate grappe" {
		t.Fatalf("expected a single surviving product named Tomate grappe, got %d", len(products))
	}

	var master models.MasterArticle
	if err := db.Where("establishment_id = ?", establishment.ID).First(&master).Error; err != nil {
		t.Fatalf("surviving master article: %v", err)
	}
	var masterCount int64
	if err := db.Model(&models.MasterArticle{}).Where("establishment_id = ?", establishment.ID).Count(&masterCount).Error; err != nil {
		t.Fatalf("count master articles: %v", err)
	}
	if masterCount != 1 {
		t.Fatalf("expected the tenant catalog folded to one master article, got %d", masterCount)
	}
	// the chronologically latest purchase across the merged set wins
	if !master.CurrentUnitPrice.Equal(decimal.RequireFromString("8.00")) {
		t.Fatalf("expected current unit price 8.00 after merge, got %s", master.CurrentUnitPrice)
	}

	var supplier models.Supplier
	if err := db.Where("establishment_id = ?", establishment.ID).First(&supplier).Error; err != nil {
		t.Fatalf("surviving tenant supplier: %v", err)
	}
	var supplierCount int64
	if err := db.Model(&models.Supplier{}).Where("establishment_id = ?", establishment.ID).Count(&supplierCount).Error; err != nil {
		t.Fatalf("count tenant suppliers: %v", err)
	}
	if supplierCount != 1 {
		t.Fatalf("expected one surviving tenant supplier, got %d", supplierCount)
	}
	var repointed int64
	err = db.Model(&models.Invoice{}).
		Where("establishment_id = ? AND supplier_id = ?", establishment.ID, supplier.ID).
		Count(&repointed).Error
	if err != nil {
		t.Fatalf("count invoices: %v", err)
	}
	if repointed != 3 {
		t.Fatalf("expected all 3 invoices re-pointed to the survivor, got %d", repointed)
	}
}

func sumArticleTotals(t *testing.T, db *gorm.DB) decimal.Decimal {
	t.Helper()
	var articles []*models.Article
	if err := db.Find(&articles).Error; err != nil {
		t.Fatalf("list articles: %v", err)
	}
	sum := decimal.Zero
	for _, article := range articles {
		sum = sum.Add(article.Total)
	}
	return sum
}

func marketSupplierByName(t *testing.T, db *gorm.DB, name string) *models.MarketSupplier {
	t.Helper()
	var supplier models.MarketSupplier
	if err := db.Where("name = ?", name).First(&supplier).Error; err != nil {
		t.Fatalf("market supplier %q: %v", name, err)
	}
	return &supplier
}

func supplierInvoicePayload(supplierName, invoiceNumber string, date time.Time, unitPrice, quantity, total string) *models.InvoiceImportInput {
	return &models.InvoiceImportInput{
		SupplierName:  supplierName,
		SupplierLabel: models.SupplierLabelFood,
		InvoiceNumber: invoiceNumber,
		Date:          date,
		TotalExclTax:  decimal.RequireFromString(total),
		Lines: []*models.InvoiceLineInput{
			{
				ProductName: "Tomate grappe",
				Unit:        "kg",
				Quantity:    decimal.RequireFromString(quantity),
				UnitPrice:   decimal.RequireFromString(unitPrice),
				Total:       decimal.RequireFromString(total),
			},
		},
	}
}
