package workflow

import (
	"sort"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ledgerEntry is the in-memory view of one history row, ordered by date then
// id. The planner only needs dates and versions.
type ledgerEntry struct {
	Id      int
	Date    time.Time
	Version decimal.Decimal
}

// ledgerPlan is the outcome of the temporal upsert decision. OverwriteId is
// zero when a new entry must be appended.
type ledgerPlan struct {
	OverwriteId int
	Version     decimal.Decimal
	Date        time.Time
}

// nextLedgerVersion is floor(max integer version)+1, or 1 on an empty ledger.
// Fractional versions left behind by back-dated corrections collapse onto the
// next integer.
func nextLedgerVersion(entries []ledgerEntry) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.NewFromInt(1)
	}
	max := entries[0].Version
	for _, entry := range entries[1:] {
		if entry.Version.GreaterThan(max) {
			max = entry.Version
		}
	}
	return max.Floor().Add(decimal.NewFromInt(1))
}

// planLedgerWrite decides how to record a snapshot at date without breaking
// total temporal order. Entries must be sorted by date ascending.
//
// An import is a fact replay: when an entry already exists at the target date,
// or a later entry was computed assuming the now-revised fact, that entry is
// corrected in place and keeps its version. Only when the target is newest
// does an import append. A manual write is an operator checkpoint and always
// appends a fresh integer version.
func planLedgerWrite(entries []ledgerEntry, date time.Time, trigger models.HistoryTrigger) ledgerPlan {
	if trigger == models.HistoryTriggerManual {
		return ledgerPlan{Version: nextLedgerVersion(entries), Date: date}
	}

	idx := sort.Search(len(entries), func(i int) bool {
		return !entries[i].Date.Before(date)
	})
	if idx < len(entries) {
		return ledgerPlan{
			OverwriteId: entries[idx].Id,
			Version:     entries[idx].Version,
			Date:        date,
		}
	}
	return ledgerPlan{Version: nextLedgerVersion(entries), Date: date}
}

// ingredientCostBreakdown applies loss and quantity to a gross unit price:
// unitCost = gross * (1 + loss/100) * quantity, lossValue is the loss share of
// that, and the per-portion figure divides by the owning recipe's portions.
func ingredientCostBreakdown(gross, quantity, loss, portions decimal.Decimal) (unitCost, lossValue, perPortion decimal.Decimal) {
	hundred := decimal.NewFromInt(100)
	lossFactor := decimal.NewFromInt(1).Add(loss.Div(hundred))
	unitCost = gross.Mul(lossFactor).Mul(quantity)
	lossValue = gross.Mul(loss.Div(hundred)).Mul(quantity)
	perPortion = utils.SafeDiv(unitCost, portions)
	return unitCost, lossValue, perPortion
}

func ingredientLedgerIndex(entries []*models.IngredientHistory) []ledgerEntry {
	index := make([]ledgerEntry, 0, len(entries))
	for _, entry := range entries {
		index = append(index, ledgerEntry{Id: entry.ID, Date: entry.Date, Version: entry.Version})
	}
	return index
}

func recipeLedgerIndex(entries []*models.RecipeHistory) []ledgerEntry {
	index := make([]ledgerEntry, 0, len(entries))
	for _, entry := range entries {
		index = append(index, ledgerEntry{Id: entry.ID, Date: entry.Date, Version: entry.Version})
	}
	return index
}

// UpsertIngredientHistory records a cost snapshot for one ingredient and
// refreshes its cached fields from the chronologically latest entry.
func UpsertIngredientHistory(tx *gorm.DB, logger *logrus.Logger, ingredient *models.Ingredient, recipe *models.Recipe,
	gross decimal.Decimal, date time.Time, trigger models.HistoryTrigger, invoiceId *int) (*models.IngredientHistory, error) {

	if trigger == models.HistoryTriggerImport && invoiceId == nil {
		return nil, utils.NewValidationError("import history entry requires an invoice id")
	}

	date = utils.TruncateToDay(date)
	unitCost, lossValue, perPortion := ingredientCostBreakdown(gross, ingredient.Quantity, ingredient.Loss, recipe.PortionCount())

	entries, err := models.ListIngredientHistory(tx, ingredient.ID)
	if err != nil {
		config.LogError(logger, "ledger.go", "UpsertIngredientHistory", "ListIngredientHistory", ingredient.ID, err)
		return nil, err
	}
	plan := planLedgerWrite(ingredientLedgerIndex(entries), date, trigger)

	entry := models.IngredientHistory{
		ID:                 plan.OverwriteId,
		EstablishmentId:    ingredient.EstablishmentId,
		IngredientId:       ingredient.ID,
		Version:            plan.Version,
		Date:               plan.Date,
		Trigger:            trigger,
		InvoiceId:          invoiceId,
		GrossUnitPrice:     gross,
		UnitCost:           unitCost,
		LossValue:          lossValue,
		UnitCostPerPortion: perPortion,
	}
	if err := tx.Save(&entry).Error; err != nil {
		config.LogError(logger, "ledger.go", "UpsertIngredientHistory", "Save", entry, err)
		return nil, err
	}

	if err := refreshIngredientCache(tx, logger, ingredient); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpsertRecipeHistory records a recomputed cost snapshot for one recipe and
// refreshes its cached fields.
func UpsertRecipeHistory(tx *gorm.DB, logger *logrus.Logger, recipe *models.Recipe,
	total, perPortion, margin decimal.Decimal, containsSubRecipe bool,
	date time.Time, trigger models.HistoryTrigger, invoiceId *int) (*models.RecipeHistory, error) {

	if trigger == models.HistoryTriggerImport && invoiceId == nil {
		return nil, utils.NewValidationError("import history entry requires an invoice id")
	}

	date = utils.TruncateToDay(date)
	entries, err := models.ListRecipeHistory(tx, recipe.ID)
	if err != nil {
		config.LogError(logger, "ledger.go", "UpsertRecipeHistory", "ListRecipeHistory", recipe.ID, err)
		return nil, err
	}
	plan := planLedgerWrite(recipeLedgerIndex(entries), date, trigger)

	containsSub := containsSubRecipe
	entry := models.RecipeHistory{
		ID:                     plan.OverwriteId,
		EstablishmentId:        recipe.EstablishmentId,
		RecipeId:               recipe.ID,
		Version:                plan.Version,
		Date:                   plan.Date,
		Trigger:                trigger,
		InvoiceId:              invoiceId,
		PurchaseCostTotal:      total,
		PurchaseCostPerPortion: perPortion,
		Margin:                 margin,
		ContainsSubRecipe:      &containsSub,
	}
	if err := tx.Save(&entry).Error; err != nil {
		config.LogError(logger, "ledger.go", "UpsertRecipeHistory", "Save", entry, err)
		return nil, err
	}

	if err := refreshRecipeCache(tx, logger, recipe); err != nil {
		return nil, err
	}
	return &entry, nil
}

// refreshIngredientCache re-derives the ingredient's cached cost fields from
// the chronologically latest ledger entry.
func refreshIngredientCache(tx *gorm.DB, logger *logrus.Logger, ingredient *models.Ingredient) error {
	latest, err := models.LatestIngredientHistory(tx, ingredient.ID)
	if err != nil {
		config.LogError(logger, "ledger.go", "refreshIngredientCache", "LatestIngredientHistory", ingredient.ID, err)
		return err
	}
	gross, unitCost := decimal.Zero, decimal.Zero
	if latest != nil {
		gross, unitCost = latest.GrossUnitPrice, latest.UnitCost
	}
	ingredient.GrossUnitPrice = gross
	ingredient.UnitCost = unitCost
	return tx.Model(&models.Ingredient{}).Where("id = ?", ingredient.ID).
		Updates(map[string]interface{}{
			"gross_unit_price": gross,
			"unit_cost":        unitCost,
		}).Error
}

func refreshRecipeCache(tx *gorm.DB, logger *logrus.Logger, recipe *models.Recipe) error {
	latest, err := models.LatestRecipeHistory(tx, recipe.ID)
	if err != nil {
		config.LogError(logger, "ledger.go", "refreshRecipeCache", "LatestRecipeHistory", recipe.ID, err)
		return err
	}
	if latest == nil {
		return nil
	}
	recipe.PurchaseCostTotal = latest.PurchaseCostTotal
	recipe.PurchaseCostPerPortion = latest.PurchaseCostPerPortion
	recipe.Margin = latest.Margin
	return tx.Model(&models.Recipe{}).Where("id = ?", recipe.ID).
		Updates(map[string]interface{}{
			"purchase_cost_total":       latest.PurchaseCostTotal,
			"purchase_cost_per_portion": latest.PurchaseCostPerPortion,
			"margin":                    latest.Margin,
		}).Error
}
