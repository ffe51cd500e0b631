package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/workflow"
)

func main() {
	establishmentID := flag.String("establishment-id", "", "Optional: drain only one establishment's pending jobs.")
	batchSize := flag.Int("batch-size", 50, "Max jobs picked up per pass")
	loop := flag.Bool("loop", false, "Keep polling for new jobs instead of exiting after one pass")
	interval := flag.Duration("interval", 30*time.Second, "Polling interval when -loop is set")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	for {
		jobs, err := models.ListPendingImportJobs(db.WithContext(ctx), strings.TrimSpace(*establishmentID), *batchSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list pending jobs: %v\n", err)
			os.Exit(1)
		}

		for _, job := range jobs {
			if err := workflow.RunInvoiceImport(ctx, logger, job.EstablishmentId, job.ID); err != nil {
				logger.WithField("job_id", job.ID).WithError(err).Error("import job failed")
				continue
			}
			logger.WithField("job_id", job.ID).Info("import job completed")
		}

		if !*loop {
			return
		}
		time.Sleep(*interval)
	}
}
