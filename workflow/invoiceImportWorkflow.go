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

// blendedLine accumulates every payload line resolving to the same master
// article on one invoice. Multiple lines blend into a single quantity-weighted
// purchase fact instead of independent ones.
type blendedLine struct {
	masterArticle *models.MasterArticle
	quantity      decimal.Decimal
	weightedPrice decimal.Decimal // Σ quantity × effective unit price
	discount      decimal.Decimal
	dutiesTaxes   decimal.Decimal
	total         decimal.Decimal
	previous      *models.Article // latest purchase strictly before the invoice date
}

func (b *blendedLine) averageUnitPrice() decimal.Decimal {
	return utils.SafeDiv(b.weightedPrice, b.quantity)
}

// RunInvoiceImport executes one pending import job under the establishment
// mutation lock, inside a single transaction. The job ends completed or
// error; the variation alert sweep runs best-effort after commit.
func RunInvoiceImport(ctx context.Context, logger *logrus.Logger, establishmentId string, jobId string) error {
	establishment, err := models.GetEstablishmentById(ctx, establishmentId)
	if err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "RunInvoiceImport", "GetEstablishmentById", establishmentId, err)
		return err
	}

	var correlationId string
	err = RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		job, err := models.GetImportJob(tx, establishmentId, jobId)
		if err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "RunInvoiceImport", "GetImportJob", jobId, err)
			return utils.ErrorRecordNotFound
		}
		if job.Status != models.ImportJobStatusPending {
			return utils.NewValidationError("import job %s is already %s", job.ID, job.Status)
		}
		correlationId = job.CorrelationId
		return processInvoiceImport(tx, logger, establishment, job)
	})
	if err != nil {
		markImportJobError(ctx, logger, establishmentId, jobId, err)
		return err
	}

	sweepCtx := utils.SetCorrelationIdInContext(ctx, correlationId)
	if err := SweepVariationAlerts(sweepCtx, logger, establishmentId); err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "RunInvoiceImport", "SweepVariationAlerts", establishmentId, err)
	}
	return nil
}

// markImportJobError records the terminal error state outside the rolled-back
// transaction, so the failure survives for inspection. Validation failures on
// already-terminal jobs are left untouched.
func markImportJobError(ctx context.Context, logger *logrus.Logger, establishmentId string, jobId string, cause error) {
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&models.ImportJob{}).
		Where("establishment_id = ? AND id = ? AND status = ?", establishmentId, jobId, models.ImportJobStatusPending).
		Updates(map[string]interface{}{
			"status":        models.ImportJobStatusError,
			"error_message": cause.Error(),
			"finished_at":   time.Now(),
		}).Error
	if err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "markImportJobError", "Updates", jobId, err)
	}
}

func processInvoiceImport(tx *gorm.DB, logger *logrus.Logger, establishment *models.Establishment, job *models.ImportJob) error {
	input, err := job.ParsePayload()
	if err != nil {
		return err
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	for _, line := range input.Lines {
		if err := line.Check(); err != nil {
			return err
		}
	}
	invoiceDate := utils.TruncateToDay(input.Date)

	cleanedSupplierName := utils.CleanSupplierName(input.SupplierName)
	market, err := models.ResolveMarketSupplier(tx, input.SupplierName, cleanedSupplierName, input.SupplierLabel)
	if err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "processInvoiceImport", "ResolveMarketSupplier", input.SupplierName, err)
		return err
	}
	supplier, err := models.ResolveSupplier(tx, establishment.ID, market, supplierDetailsFromPayload(input))
	if err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "processInvoiceImport", "ResolveSupplier", market.ID, err)
		return err
	}

	invoice, err := models.ResolveInvoice(tx, establishment.ID, supplier.ID, input.InvoiceNumber, invoiceDate,
		input.TotalExclTax, input.TotalInclTax, input.TotalVat)
	if err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "processInvoiceImport", "ResolveInvoice", input.InvoiceNumber, err)
		return err
	}

	blended, touchedIds, err := blendInvoiceLines(tx, logger, establishment.ID, market, supplier, invoice, input.Lines, invoiceDate)
	if err != nil {
		return err
	}

	updates := make(map[int]decimal.Decimal)
	for _, masterArticleId := range touchedIds {
		ingredients, err := models.ListArticleIngredients(tx, establishment.ID, masterArticleId)
		if err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "processInvoiceImport", "ListArticleIngredients", masterArticleId, err)
			return err
		}
		for _, ingredient := range ingredients {
			updates[ingredient.ID] = blended[masterArticleId].averageUnitPrice()
		}
	}
	if len(updates) > 0 {
		if _, err := PropagateCosts(tx, logger, establishment.ID, updates, nil,
			invoiceDate, models.HistoryTriggerImport, &invoice.ID); err != nil {
			return err
		}
	}

	if err := detectVariations(tx, logger, establishment.ID, blended, touchedIds, invoiceDate); err != nil {
		return err
	}

	if err := models.FinishImportJob(tx, job, models.ImportJobStatusCompleted, "", &invoice.ID, len(input.Lines)); err != nil {
		config.LogError(logger, "invoiceImportWorkflow.go", "processInvoiceImport", "FinishImportJob", job.ID, err)
		return err
	}
	return nil
}

func supplierDetailsFromPayload(input *models.InvoiceImportInput) *models.Supplier {
	details := &models.Supplier{
		Siret:     input.Siret,
		VatNumber: input.VatNumber,
		Address:   input.Address,
	}
	if utils.IsValidEmail(input.Email) {
		details.Email = input.Email
	}
	if utils.ValidatePhoneNumber(input.Phone, utils.CountryCode) == nil {
		details.Phone = utils.NormalizePhoneNumber(input.Phone, utils.CountryCode)
	}
	return details
}

// blendInvoiceLines resolves every payload line to a master article and
// records one blended Article purchase fact per master article. Re-importing
// the same invoice replaces the previous facts for that date.
func blendInvoiceLines(tx *gorm.DB, logger *logrus.Logger, establishmentId string,
	market *models.MarketSupplier, supplier *models.Supplier, invoice *models.Invoice,
	lines []*models.InvoiceLineInput, invoiceDate time.Time) (map[int]*blendedLine, []int, error) {

	blended := make(map[int]*blendedLine)
	var touchedIds []int

	for _, line := range lines {
		cleanedName := utils.CleanProductName(line.ProductName)
		marketArticle, err := models.ResolveMarketMasterArticle(tx, market.ID, cleanedName, line.Unit)
		if err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "ResolveMarketMasterArticle", line.ProductName, err)
			return nil, nil, err
		}
		masterArticle, err := models.ResolveMasterArticle(tx, establishmentId, supplier.ID, marketArticle, line.Unit)
		if err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "ResolveMasterArticle", marketArticle.ID, err)
			return nil, nil, err
		}

		group := blended[masterArticle.ID]
		if group == nil {
			previous, err := models.LatestArticleBefore(tx, masterArticle.ID, invoiceDate)
			if err != nil {
				config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "LatestArticleBefore", masterArticle.ID, err)
				return nil, nil, err
			}
			group = &blendedLine{masterArticle: masterArticle, previous: previous}
			blended[masterArticle.ID] = group
			touchedIds = append(touchedIds, masterArticle.ID)
		}
		group.quantity = group.quantity.Add(line.Quantity)
		group.weightedPrice = group.weightedPrice.Add(line.Quantity.Mul(line.EffectiveUnitPrice()))
		group.discount = group.discount.Add(line.Discount)
		group.dutiesTaxes = group.dutiesTaxes.Add(line.DutiesAndTaxes)
		group.total = group.total.Add(line.Total)
	}

	for _, masterArticleId := range touchedIds {
		group := blended[masterArticleId]
		err := tx.Where("invoice_id = ? AND master_article_id = ? AND date = ?",
			invoice.ID, masterArticleId, invoiceDate).Delete(&models.Article{}).Error
		if err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "Delete stale articles", masterArticleId, err)
			return nil, nil, err
		}
		article := models.Article{
			MasterArticleId: masterArticleId,
			InvoiceId:       invoice.ID,
			Date:            invoiceDate,
			Quantity:        group.quantity,
			UnitPrice:       group.averageUnitPrice(),
			Discount:        group.discount,
			DutiesAndTaxes:  group.dutiesTaxes,
			Total:           group.total,
		}
		if err := tx.Create(&article).Error; err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "Create article", article, err)
			return nil, nil, err
		}
		if err := models.RefreshCurrentUnitPrice(tx, masterArticleId); err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "blendInvoiceLines", "RefreshCurrentUnitPrice", masterArticleId, err)
			return nil, nil, err
		}
	}
	return blended, touchedIds, nil
}

// detectVariations compares each touched master article against its price
// immediately before the invoice and records a Variation row. Rows start
// unprocessed; the alert sweep decides delivery after commit.
func detectVariations(tx *gorm.DB, logger *logrus.Logger, establishmentId string,
	blended map[int]*blendedLine, touchedIds []int, invoiceDate time.Time) error {

	for _, masterArticleId := range touchedIds {
		group := blended[masterArticleId]
		if group.previous == nil {
			continue
		}
		oldPrice := group.previous.UnitPrice
		newPrice := group.averageUnitPrice()
		if oldPrice.Equal(newPrice) {
			continue
		}

		variation := models.Variation{
			EstablishmentId: establishmentId,
			MasterArticleId: masterArticleId,
			ArticleId:       group.previous.ID,
			Date:            invoiceDate,
			OldUnitPrice:    oldPrice,
			NewUnitPrice:    newPrice,
			Percentage:      utils.PercentChange(oldPrice, newPrice),
			Alerted:         utils.NewFalse(),
		}
		if err := tx.Create(&variation).Error; err != nil {
			config.LogError(logger, "invoiceImportWorkflow.go", "detectVariations", "Create variation", variation, err)
			return err
		}
	}
	return nil
}
