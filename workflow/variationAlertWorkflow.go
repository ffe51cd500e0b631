package workflow

import (
	"context"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/sirupsen/logrus"
)

// SweepVariationAlerts walks the establishment's unprocessed variations,
// publishes the ones clearing the alert configuration and marks every
// processed row. A row whose publish failed stays unmarked and is retried by
// the next sweep.
func SweepVariationAlerts(ctx context.Context, logger *logrus.Logger, establishmentId string) error {
	establishment, err := models.GetEstablishmentById(ctx, establishmentId)
	if err != nil {
		return err
	}
	db := config.GetDB().WithContext(ctx)
	variations, err := models.ListUnalertedVariations(db, establishmentId)
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	for _, variation := range variations {
		masterArticle, err := utils.FetchModel[models.MasterArticle](ctx, establishmentId, variation.MasterArticleId)
		if err != nil {
			config.LogError(logger, "variationAlertWorkflow.go", "SweepVariationAlerts", "FetchModel master article", variation.MasterArticleId, err)
			continue
		}
		supplier, err := utils.FetchModel[models.Supplier](ctx, establishmentId, masterArticle.SupplierId)
		if err != nil {
			config.LogError(logger, "variationAlertWorkflow.go", "SweepVariationAlerts", "FetchModel supplier", masterArticle.SupplierId, err)
			continue
		}

		shouldAlert := utils.DereferencePtr(establishment.ActiveSms) &&
			variation.PassesTrigger(establishment.SmsVariationTrigger) &&
			models.MatchesSmsType(establishment.TypeSms, supplier.Label)
		if shouldAlert {
			alert := config.AlertMessage{
				EstablishmentId: establishmentId,
				MasterArticleId: variation.MasterArticleId,
				ArticleName:     masterArticle.Name,
				SupplierName:    supplier.Name,
				OldUnitCost:     variation.OldUnitPrice.String(),
				NewUnitCost:     variation.NewUnitPrice.String(),
				Percentage:      variation.Percentage.String(),
				InvoiceDate:     variation.Date,
				CorrelationId:   correlationId,
			}
			if _, err := config.PublishAlert(ctx, alert); err != nil {
				config.LogError(logger, "variationAlertWorkflow.go", "SweepVariationAlerts", "PublishAlert", alert, err)
				continue
			}
		}
		if err := models.MarkVariationAlerted(db, variation.ID); err != nil {
			config.LogError(logger, "variationAlertWorkflow.go", "SweepVariationAlerts", "MarkVariationAlerted", variation.ID, err)
		}
	}
	return nil
}
