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

type SalesMixEntry struct {
	RecipeId     int             `json:"recipe_id" validate:"required"`
	QuantitySold decimal.Decimal `json:"quantity_sold"`
}

type FinancialReportInput struct {
	Year  int              `json:"year" validate:"required"`
	Month time.Month       `json:"month" validate:"required,min=1,max=12"`
	Sales []*SalesMixEntry `json:"sales" validate:"required,min=1,dive"`
}

// scoreBand maps a ratio to a score; bands are checked in order and the first
// match wins.
type scoreBand struct {
	limit decimal.Decimal
	score decimal.Decimal
}

// purchaseScoreBands score the food-cost ratio: lower is better.
var purchaseScoreBands = []scoreBand{
	{limit: decimal.NewFromInt(25), score: decimal.NewFromInt(100)},
	{limit: decimal.NewFromInt(30), score: decimal.NewFromInt(80)},
	{limit: decimal.NewFromInt(35), score: decimal.NewFromInt(60)},
	{limit: decimal.NewFromInt(40), score: decimal.NewFromInt(40)},
}

// recipeScoreBands score the average commercial margin: higher is better.
var recipeScoreBands = []scoreBand{
	{limit: decimal.NewFromInt(75), score: decimal.NewFromInt(100)},
	{limit: decimal.NewFromInt(70), score: decimal.NewFromInt(80)},
	{limit: decimal.NewFromInt(65), score: decimal.NewFromInt(60)},
	{limit: decimal.NewFromInt(60), score: decimal.NewFromInt(40)},
}

// financialScoreBands score the net result as a share of revenue.
var financialScoreBands = []scoreBand{
	{limit: decimal.NewFromInt(20), score: decimal.NewFromInt(100)},
	{limit: decimal.NewFromInt(10), score: decimal.NewFromInt(80)},
	{limit: decimal.NewFromInt(5), score: decimal.NewFromInt(60)},
	{limit: decimal.NewFromInt(0), score: decimal.NewFromInt(40)},
}

var floorScore = decimal.NewFromInt(20)

func scoreBelow(bands []scoreBand, ratio decimal.Decimal) decimal.Decimal {
	for _, band := range bands {
		if ratio.LessThanOrEqual(band.limit) {
			return band.score
		}
	}
	return floorScore
}

func scoreAbove(bands []scoreBand, ratio decimal.Decimal) decimal.Decimal {
	for _, band := range bands {
		if ratio.GreaterThanOrEqual(band.limit) {
			return band.score
		}
	}
	return floorScore
}

// reportScores grades one month on its own ratios: food-cost ratio, average
// commercial margin of the sold recipes, and net result as a share of revenue.
// The global score is the plain mean of the three.
func reportScores(foodCostRatio, averageMargin, netRatio decimal.Decimal) (purchase, recipe, financial, global decimal.Decimal) {
	purchase = scoreBelow(purchaseScoreBands, foodCostRatio)
	recipe = scoreAbove(recipeScoreBands, averageMargin)
	financial = scoreAbove(financialScoreBands, netRatio)
	global = purchase.Add(recipe).Add(financial).Div(decimal.NewFromInt(3))
	return purchase, recipe, financial, global
}

// GenerateFinancialReport wholesale-rebuilds the month's snapshot from the
// sales mix and the establishment's cost inputs. If the month is the
// establishment's most recent report, the live scores refresh afterwards.
func GenerateFinancialReport(ctx context.Context, logger *logrus.Logger, establishmentId string, input *FinancialReportInput) (*models.FinancialReport, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var report *models.FinancialReport
	err := RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		establishment, err := models.GetEstablishmentById2(tx, establishmentId)
		if err != nil {
			config.LogError(logger, "financialReportWorkflow.go", "GenerateFinancialReport", "GetEstablishmentById2", establishmentId, err)
			return err
		}
		monthStart, _ := utils.MonthBounds(input.Year, input.Month)

		existing, err := models.GetFinancialReport(tx, establishmentId, monthStart)
		if err != nil {
			return err
		}
		if existing != nil {
			if err := models.DeleteFinancialReport(tx, existing); err != nil {
				config.LogError(logger, "financialReportWorkflow.go", "GenerateFinancialReport", "DeleteFinancialReport", existing.ID, err)
				return err
			}
		}

		report, err = buildFinancialReport(tx, logger, establishment, monthStart, input.Sales)
		if err != nil {
			return err
		}

		latest, err := latestReportMonth(tx, establishmentId)
		if err != nil {
			return err
		}
		if latest.Equal(monthStart) {
			return refreshLiveScores(tx, logger, establishment, report)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func buildFinancialReport(tx *gorm.DB, logger *logrus.Logger, establishment *models.Establishment,
	monthStart time.Time, sales []*SalesMixEntry) (*models.FinancialReport, error) {

	report := models.FinancialReport{
		EstablishmentId: establishment.ID,
		Month:           monthStart,
	}
	if err := tx.Create(&report).Error; err != nil {
		config.LogError(logger, "financialReportWorkflow.go", "buildFinancialReport", "Create report", report, err)
		return nil, err
	}

	revenue := decimal.Zero
	purchaseCost := decimal.Zero
	dishesSold := decimal.Zero
	marginSum := decimal.Zero
	for _, sale := range sales {
		recipe, err := models.GetRecipe(tx, establishment.ID, sale.RecipeId)
		if err != nil {
			config.LogError(logger, "financialReportWorkflow.go", "buildFinancialReport", "GetRecipe", sale.RecipeId, err)
			return nil, utils.ErrorRecordNotFound
		}
		if err := upsertRecipeSale(tx, establishment.ID, recipe.ID, monthStart, sale.QuantitySold); err != nil {
			return nil, err
		}

		lineRevenue := recipe.SalePriceExclTax.Mul(sale.QuantitySold)
		lineCost := recipe.PurchaseCostPerPortion.Mul(sale.QuantitySold)
		financialRecipe := models.FinancialRecipe{
			FinancialReportId: report.ID,
			RecipeId:          recipe.ID,
			Name:              recipe.Name,
			QuantitySold:      sale.QuantitySold,
			SalePriceExclTax:  recipe.SalePriceExclTax,
			CostPerPortion:    recipe.PurchaseCostPerPortion,
			Revenue:           lineRevenue,
			Cost:              lineCost,
			Margin:            models.ComputeMargin(recipe.SalePriceExclTax, recipe.PurchaseCostPerPortion),
		}
		if err := tx.Create(&financialRecipe).Error; err != nil {
			return nil, err
		}

		ingredients, err := models.ListRecipeIngredients(tx, recipe.ID)
		if err != nil {
			return nil, err
		}
		for _, ingredient := range ingredients {
			frozen := models.FinancialIngredient{
				FinancialRecipeId: financialRecipe.ID,
				IngredientId:      ingredient.ID,
				Name:              ingredient.Name,
				Variant:           ingredient.Variant,
				Quantity:          ingredient.Quantity,
				UnitCost:          ingredient.UnitCost,
			}
			if err := tx.Create(&frozen).Error; err != nil {
				return nil, err
			}
		}

		revenue = revenue.Add(lineRevenue)
		purchaseCost = purchaseCost.Add(lineCost)
		dishesSold = dishesSold.Add(sale.QuantitySold)
		marginSum = marginSum.Add(financialRecipe.Margin)
	}

	hundred := decimal.NewFromInt(100)
	variableCost := revenue.Mul(establishment.VariableCostRatio).Div(hundred)
	grossMargin := revenue.Sub(purchaseCost)
	netResult := grossMargin.
		Sub(establishment.MonthlyLaborCost).
		Sub(establishment.MonthlyFixedCost).
		Sub(variableCost).
		Sub(establishment.MonthlyOtherCost)

	foodCostRatio := utils.SafeDiv(purchaseCost, revenue).Mul(hundred)
	// break-even: fixed charges divided by the contribution left per revenue unit
	contribution := decimal.NewFromInt(1).
		Sub(establishment.VariableCostRatio.Div(hundred)).
		Sub(utils.SafeDiv(purchaseCost, revenue))
	fixedCharges := establishment.MonthlyLaborCost.
		Add(establishment.MonthlyFixedCost).
		Add(establishment.MonthlyOtherCost)
	breakEven := decimal.Zero
	if contribution.IsPositive() {
		breakEven = fixedCharges.Div(contribution)
	}

	report.Revenue = revenue
	report.PurchaseCost = purchaseCost
	report.LaborCost = establishment.MonthlyLaborCost
	report.FixedCost = establishment.MonthlyFixedCost
	report.VariableCost = variableCost
	report.OtherCost = establishment.MonthlyOtherCost
	report.GrossMargin = grossMargin
	report.NetResult = netResult
	report.FoodCostRatio = foodCostRatio
	report.LaborCostRatio = utils.SafeDiv(establishment.MonthlyLaborCost, revenue).Mul(hundred)
	report.BreakEvenRevenue = breakEven
	report.SafetyMargin = revenue.Sub(breakEven)
	report.RevenuePerEmployee = utils.SafeDiv(revenue, decimal.NewFromInt(int64(establishment.EmployeeCount)))
	report.NetResultPerDish = utils.SafeDiv(netResult, dishesSold)

	averageMargin := utils.SafeDiv(marginSum, decimal.NewFromInt(int64(len(sales))))
	netRatio := utils.SafeDiv(netResult, revenue).Mul(hundred)
	report.PurchaseScore, report.RecipeScore, report.FinancialScore, report.GlobalScore =
		reportScores(foodCostRatio, averageMargin, netRatio)
	if err := tx.Save(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func upsertRecipeSale(tx *gorm.DB, establishmentId string, recipeId int, monthStart time.Time, quantity decimal.Decimal) error {
	var sale models.RecipeSale
	err := tx.Where("establishment_id = ? AND recipe_id = ? AND month = ?",
		establishmentId, recipeId, monthStart).First(&sale).Error
	if err == gorm.ErrRecordNotFound {
		sale = models.RecipeSale{
			EstablishmentId: establishmentId,
			RecipeId:        recipeId,
			Month:           monthStart,
			QuantitySold:    quantity,
		}
		return tx.Create(&sale).Error
	}
	if err != nil {
		return err
	}
	sale.QuantitySold = quantity
	return tx.Save(&sale).Error
}

func latestReportMonth(tx *gorm.DB, establishmentId string) (time.Time, error) {
	var latest models.FinancialReport
	err := tx.Where("establishment_id = ?", establishmentId).
		Order("month DESC").First(&latest).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return latest.Month, nil
}
