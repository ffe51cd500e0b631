package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/chefbooks/foodcost_backend/workflow"
	"gorm.io/gorm"
)

// Operator tool for the supplier dedup pipeline: file a merge request, review
// it, execute an accepted one.
func main() {
	create := flag.Bool("create", false, "File a new merge request (-target, -sources)")
	target := flag.Int("target", 0, "Target market supplier id (-create)")
	sources := flag.String("sources", "", "Comma-separated source market supplier ids (-create)")
	review := flag.Int("review", 0, "Pending merge request id to review")
	accept := flag.Bool("accept", false, "Accept instead of reject (-review)")
	execute := flag.Int("execute", 0, "Accepted merge request id to execute")
	actor := flag.String("actor", "ops", "Name recorded on the request")
	flag.Parse()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()

	ctx := utils.SetUserNameInContext(context.Background(), *actor)
	ctx = utils.SetIsAdminInContext(ctx, true)
	userName, _ := utils.GetUserNameFromContext(ctx)

	switch {
	case *create:
		sourceIds, err := parseIds(*sources)
		if err != nil || len(sourceIds) == 0 || *target == 0 {
			fmt.Fprintln(os.Stderr, "usage: merge-runner -create -target ID -sources ID,ID")
			os.Exit(2)
		}
		var request *models.MergeRequest
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			request, err = models.CreateMergeRequest(tx, &models.NewMergeRequest{
				TargetSupplierId:  *target,
				SourceSupplierIds: sourceIds,
				RequestedBy:       userName,
			})
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("merge request %d filed (%d sources -> supplier %d)\n", request.ID, len(sourceIds), *target)

	case *review != 0:
		var request *models.MergeRequest
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			request, err = models.ReviewMergeRequest(tx, *review, *accept, userName)
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "review failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("merge request %d is now %s\n", request.ID, request.Status)

	case *execute != 0:
		if err := workflow.ExecuteMergeRequest(ctx, logger, *execute); err != nil {
			fmt.Fprintf(os.Stderr, "execute failed: %v\n", err)
			os.Exit(1)
		}
		request, err := utils.FetchSingleModel[models.MergeRequest](ctx, *execute)
		if err != nil {
			fmt.Fprintf(os.Stderr, "executed, but reload failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("merge request %d %s (target supplier %d)\n", request.ID, request.Status, request.TargetSupplierId)

	default:
		fmt.Fprintln(os.Stderr, "usage: merge-runner -create|-review ID|-execute ID")
		os.Exit(2)
	}
}

func parseIds(list string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
