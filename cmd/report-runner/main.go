package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/workflow"
)

func main() {
	establishmentID := flag.String("establishment-id", "", "Establishment to rebuild the report for")
	year := flag.Int("year", 0, "Report year (YYYY)")
	month := flag.Int("month", 0, "Report month (1-12)")
	salesFile := flag.String("sales-file", "", "Path to a JSON file with the sales mix: [{\"recipe_id\":1,\"quantity_sold\":\"120\"}]")
	refreshScores := flag.Bool("refresh-live-scores", false, "Refresh live scores for every establishment and exit")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	if *refreshScores {
		if err := workflow.RefreshLiveScoresForAll(ctx, logger); err != nil {
			fmt.Fprintf(os.Stderr, "live score refresh failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *establishmentID == "" || *year == 0 || *month == 0 || *salesFile == "" {
		fmt.Fprintln(os.Stderr, "usage: report-runner -establishment-id ID -year YYYY -month M -sales-file sales.json")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*salesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot read sales file: %v\n", err)
		os.Exit(1)
	}
	var sales []*workflow.SalesMixEntry
	if err := json.Unmarshal(raw, &sales); err != nil {
		fmt.Fprintf(os.Stderr, "malformed sales file: %v\n", err)
		os.Exit(1)
	}

	report, err := workflow.GenerateFinancialReport(ctx, logger, *establishmentID, &workflow.FinancialReportInput{
		Year:  *year,
		Month: time.Month(*month),
		Sales: sales,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "report generation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("report %d for %s: revenue=%s purchase=%s net=%s food-cost=%s%% score=%s\n",
		report.ID, report.Month.Format("2006-01"),
		report.Revenue, report.PurchaseCost, report.NetResult, report.FoodCostRatio,
		report.GlobalScore.Round(2))

	scores, err := models.GetLiveScores(config.GetDB().WithContext(ctx), *establishmentID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "live score lookup failed: %v\n", err)
		os.Exit(1)
	}
	for _, score := range scores {
		fmt.Printf("live %s score: %s (computed %s)\n", score.Type, score.Score, score.ComputedAt.Format("2006-01-02"))
	}
}
