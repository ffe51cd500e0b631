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

const liveScoreWindowDays = 30

// stalenessPenalty is knocked off every live score when the latest monthly
// report does not cover the calendar month immediately preceding today.
var stalenessPenalty = decimal.NewFromInt(10)

// RefreshLiveScores recomputes the four rolling scores from the latest
// monthly report and the trailing 30-day purchase window.
func RefreshLiveScores(ctx context.Context, logger *logrus.Logger, establishmentId string) error {
	return RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		establishment, err := models.GetEstablishmentById2(tx, establishmentId)
		if err != nil {
			config.LogError(logger, "liveScoreWorkflow.go", "RefreshLiveScores", "GetEstablishmentById2", establishmentId, err)
			return err
		}
		var latest models.FinancialReport
		err = tx.Where("establishment_id = ?", establishmentId).
			Order("month DESC").First(&latest).Error
		if err == gorm.ErrRecordNotFound {
			return utils.NewValidationError("no financial report exists for establishment %s", establishmentId)
		}
		if err != nil {
			return err
		}
		return refreshLiveScores(tx, logger, establishment, &latest)
	})
}

func refreshLiveScores(tx *gorm.DB, logger *logrus.Logger, establishment *models.Establishment, report *models.FinancialReport) error {
	now := time.Now()
	hundred := decimal.NewFromInt(100)

	purchase30, err := trailingPurchaseTotal(tx, establishment.ID, now)
	if err != nil {
		config.LogError(logger, "liveScoreWorkflow.go", "refreshLiveScores", "trailingPurchaseTotal", establishment.ID, err)
		return err
	}
	// revenue for the window approximated from the latest report's run rate
	revenue30 := report.Revenue.Div(decimal.NewFromInt(int64(daysInMonth(report.Month)))).
		Mul(decimal.NewFromInt(liveScoreWindowDays))

	purchaseRatio := report.FoodCostRatio
	if revenue30.IsPositive() {
		purchaseRatio = purchase30.Div(revenue30).Mul(hundred)
	}
	purchaseScore := scoreBelow(purchaseScoreBands, purchaseRatio)

	averageMargin, err := averageSaleableMargin(tx, establishment.ID)
	if err != nil {
		return err
	}
	recipeScore := scoreAbove(recipeScoreBands, averageMargin)

	netRatio := utils.SafeDiv(report.NetResult, report.Revenue).Mul(hundred)
	financialScore := scoreAbove(financialScoreBands, netRatio)

	globalScore := purchaseScore.Add(recipeScore).Add(financialScore).
		Div(decimal.NewFromInt(3))

	if isReportStale(report.Month, now) {
		purchaseScore = penalize(purchaseScore)
		recipeScore = penalize(recipeScore)
		financialScore = penalize(financialScore)
		globalScore = penalize(globalScore)
	}

	scores := map[models.LiveScoreType]decimal.Decimal{
		models.LiveScoreTypePurchase:  purchaseScore,
		models.LiveScoreTypeRecipe:    recipeScore,
		models.LiveScoreTypeFinancial: financialScore,
		models.LiveScoreTypeGlobal:    globalScore,
	}
	for _, scoreType := range []models.LiveScoreType{
		models.LiveScoreTypePurchase,
		models.LiveScoreTypeRecipe,
		models.LiveScoreTypeFinancial,
		models.LiveScoreTypeGlobal,
	} {
		if _, err := models.UpsertLiveScore(tx, establishment.ID, scoreType, scores[scoreType], now); err != nil {
			config.LogError(logger, "liveScoreWorkflow.go", "refreshLiveScores", "UpsertLiveScore", scoreType, err)
			return err
		}
	}
	return nil
}

func trailingPurchaseTotal(tx *gorm.DB, establishmentId string, now time.Time) (decimal.Decimal, error) {
	since := utils.TruncateToDay(now.AddDate(0, 0, -liveScoreWindowDays))
	var raw *string
	err := tx.Model(&models.Article{}).
		Joins("JOIN master_articles ON master_articles.id = articles.master_article_id").
		Where("master_articles.establishment_id = ? AND articles.date >= ?", establishmentId, since).
		Select("SUM(articles.total)").Scan(&raw).Error
	if err != nil || raw == nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(*raw)
}

func averageSaleableMargin(tx *gorm.DB, establishmentId string) (decimal.Decimal, error) {
	recipes, err := utils.FetchAllPaginated[models.Recipe](
		tx.Model(&models.Recipe{}).
			Where("establishment_id = ? AND saleable = ? AND active = ?", establishmentId, true, true).
			Order("id ASC"),
		config.FetchLimit)
	if err != nil {
		return decimal.Zero, err
	}
	if len(recipes) == 0 {
		return decimal.Zero, nil
	}
	total := decimal.Zero
	for _, recipe := range recipes {
		total = total.Add(recipe.Margin)
	}
	return total.Div(decimal.NewFromInt(int64(len(recipes)))), nil
}

// isReportStale reports whether month is older than the calendar month
// immediately preceding now.
func isReportStale(month time.Time, now time.Time) bool {
	previous := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return month.Before(previous)
}

func penalize(score decimal.Decimal) decimal.Decimal {
	score = score.Sub(stalenessPenalty)
	if score.IsNegative() {
		return decimal.Zero
	}
	return score
}

func daysInMonth(month time.Time) int {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// RefreshLiveScoresForAll walks every establishment with at least one report.
// Used by the report runner on its daily tick.
func RefreshLiveScoresForAll(ctx context.Context, logger *logrus.Logger) error {
	db := config.GetDB()
	var establishmentIds []string
	err := db.WithContext(ctx).Model(&models.FinancialReport{}).
		Distinct("establishment_id").Pluck("establishment_id", &establishmentIds).Error
	if err != nil {
		return err
	}
	for _, establishmentId := range establishmentIds {
		if err := RefreshLiveScores(ctx, logger, establishmentId); err != nil {
			config.LogError(logger, "liveScoreWorkflow.go", "RefreshLiveScoresForAll", "RefreshLiveScores", establishmentId, err)
		}
	}
	return nil
}
