package workflow

import (
	"context"
	"strings"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// mergeLockKey serializes catalog merges globally; a merge crosses tenants so
// the per-establishment lock is not enough.
const mergeLockKey = "catalog-merge"

// ExecuteMergeRequest folds every source market supplier of an accepted
// request into the target, remap-before-delete. Purchase observations are
// only ever remapped, never dropped, so the total recorded purchase value of
// the merged set is conserved. Merges touch every tenant referencing the
// sources, so only admin contexts may run them.
func ExecuteMergeRequest(ctx context.Context, logger *logrus.Logger, mergeRequestId int) error {
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); !isAdmin {
		return utils.NewValidationError("merge execution requires an admin context")
	}
	return RunMutation(ctx, logger, mergeLockKey, func(tx *gorm.DB) error {
		request, err := models.GetMergeRequest(tx, mergeRequestId)
		if err != nil {
			config.LogError(logger, "supplierMergeWorkflow.go", "ExecuteMergeRequest", "GetMergeRequest", mergeRequestId, err)
			return err
		}
		if request.Status != models.MergeRequestStatusAccepted {
			return utils.NewValidationError("merge request %d is %s, not accepted", mergeRequestId, request.Status)
		}

		var target models.MarketSupplier
		if err := tx.First(&target, request.TargetSupplierId).Error; err != nil {
			return utils.ErrorRecordNotFound
		}
		sourceIds, err := models.ListMergeRequestSourceIds(tx, request.ID)
		if err != nil {
			return err
		}

		for _, sourceId := range sourceIds {
			if err := mergeMarketSupplier(tx, logger, sourceId, &target); err != nil {
				return err
			}
		}

		request.Status = models.MergeRequestStatusCompleted
		return tx.Save(request).Error
	})
}

// mergeMarketSupplier runs both phases for one source supplier: market-layer
// product dedup, then tenant-layer supplier dedup, then source removal.
func mergeMarketSupplier(tx *gorm.DB, logger *logrus.Logger, sourceId int, target *models.MarketSupplier) error {
	var source models.MarketSupplier
	if err := tx.First(&source, sourceId).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	// market phase: same-named products merge into the target's, others
	// re-parent wholesale
	var sourceProducts []*models.MarketMasterArticle
	err := tx.Where("market_supplier_id = ?", sourceId).Order("id ASC").Find(&sourceProducts).Error
	if err != nil {
		return err
	}
	for _, product := range sourceProducts {
		var existing models.MarketMasterArticle
		err := tx.Where("market_supplier_id = ? AND LOWER(name) = ?", target.ID, strings.ToLower(product.Name)).
			First(&existing).Error
		if err == gorm.ErrRecordNotFound {
			product.MarketSupplierId = target.ID
			if err := tx.Save(product).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := mergeMarketProduct(tx, logger, product, &existing); err != nil {
			return err
		}
	}

	if err := tx.Model(&models.MarketSupplierAlias{}).
		Where("market_supplier_id = ?", sourceId).
		Update("market_supplier_id", target.ID).Error; err != nil {
		return err
	}

	// tenant phase: fold tenant suppliers into their counterpart under the
	// target, or re-parent when the establishment has none
	var tenantSuppliers []*models.Supplier
	err = tx.Where("market_supplier_id = ?", sourceId).Order("id ASC").Find(&tenantSuppliers).Error
	if err != nil {
		return err
	}
	for _, tenantSupplier := range tenantSuppliers {
		var counterpart models.Supplier
		err := tx.Where("establishment_id = ? AND market_supplier_id = ?",
			tenantSupplier.EstablishmentId, target.ID).First(&counterpart).Error
		if err == gorm.ErrRecordNotFound {
			tenantSupplier.MarketSupplierId = target.ID
			if err := tx.Save(tenantSupplier).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Invoice{}).
			Where("supplier_id = ?", tenantSupplier.ID).
			Update("supplier_id", counterpart.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.MasterArticle{}).
			Where("supplier_id = ?", tenantSupplier.ID).
			Update("supplier_id", counterpart.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(tenantSupplier).Error; err != nil {
			return err
		}
	}

	if err := tx.Delete(&models.MarketSupplier{}, sourceId).Error; err != nil {
		config.LogError(logger, "supplierMergeWorkflow.go", "mergeMarketSupplier", "Delete source", sourceId, err)
		return err
	}
	return nil
}

// mergeMarketProduct folds a duplicate market product into its same-named
// survivor. Per tenant, purchase observations and ingredient references move
// to the surviving master article; variations of removed master articles are
// soft-deleted to keep the audit trail without dangling references.
func mergeMarketProduct(tx *gorm.DB, logger *logrus.Logger, duplicate, survivor *models.MarketMasterArticle) error {
	var masterArticles []*models.MasterArticle
	err := tx.Where("market_master_article_id = ?", duplicate.ID).Order("id ASC").Find(&masterArticles).Error
	if err != nil {
		return err
	}

	for _, masterArticle := range masterArticles {
		var counterpart models.MasterArticle
		err := tx.Where("establishment_id = ? AND market_master_article_id = ?",
			masterArticle.EstablishmentId, survivor.ID).First(&counterpart).Error
		if err == gorm.ErrRecordNotFound {
			masterArticle.MarketMasterArticleId = survivor.ID
			if err := tx.Save(masterArticle).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Article{}).
			Where("master_article_id = ?", masterArticle.ID).
			Update("master_article_id", counterpart.ID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Ingredient{}).
			Where("master_article_id = ?", masterArticle.ID).
			Update("master_article_id", counterpart.ID).Error; err != nil {
			return err
		}
		if err := models.SoftDeleteVariationsForArticles(tx, []int{masterArticle.ID}); err != nil {
			return err
		}
		if err := tx.Delete(masterArticle).Error; err != nil {
			return err
		}
		if err := models.RefreshCurrentUnitPrice(tx, counterpart.ID); err != nil {
			config.LogError(logger, "supplierMergeWorkflow.go", "mergeMarketProduct", "RefreshCurrentUnitPrice", counterpart.ID, err)
			return err
		}
	}

	return tx.Delete(&models.MarketMasterArticle{}, duplicate.ID).Error
}
