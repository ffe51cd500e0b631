package models

import (
	"strings"
	"time"

	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarketMasterArticle is the cross-tenant canonical product, parented under a
// MarketSupplier.
type MarketMasterArticle struct {
	ID               int       `gorm:"primary_key" json:"id"`
	MarketSupplierId int       `gorm:"index;not null" json:"market_supplier_id"`
	Name             string    `gorm:"size:200;not null;index" json:"name" binding:"required"`
	Unit             string    `gorm:"size:20" json:"unit"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MasterArticle is the tenant-scoped product. CurrentUnitPrice is a cache of
// the most recent purchase observation and must match the chronologically
// latest Article.
type MasterArticle struct {
	ID                    int             `gorm:"primary_key" json:"id"`
	EstablishmentId       string          `gorm:"index;size:36;not null" json:"establishment_id" binding:"required"`
	MarketMasterArticleId int             `gorm:"index;not null" json:"market_master_article_id"`
	SupplierId            int             `gorm:"index;not null" json:"supplier_id"`
	Name                  string          `gorm:"size:200;not null" json:"name" binding:"required"`
	Unit                  string          `gorm:"size:20" json:"unit"`
	CurrentUnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_unit_price"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveMarketMasterArticle finds or creates the canonical product under a
// market supplier by cleaned name.
func ResolveMarketMasterArticle(tx *gorm.DB, marketSupplierId int, cleanedName string, unit string) (*MarketMasterArticle, error) {
	if cleanedName == "" {
		return nil, utils.NewValidationError("product name is required")
	}

	var marketArticle MarketMasterArticle
	err := tx.Where("market_supplier_id = ? AND LOWER(name) = ?", marketSupplierId, strings.ToLower(cleanedName)).
		First(&marketArticle).Error
	if err == gorm.ErrRecordNotFound {
		marketArticle = MarketMasterArticle{
			MarketSupplierId: marketSupplierId,
			Name:             cleanedName,
			Unit:             unit,
		}
		if err := tx.Create(&marketArticle).Error; err != nil {
			return nil, err
		}
		return &marketArticle, nil
	}
	if err != nil {
		return nil, err
	}
	if unit != "" && marketArticle.Unit == "" {
		marketArticle.Unit = unit
		if err := tx.Save(&marketArticle).Error; err != nil {
			return nil, err
		}
	}
	return &marketArticle, nil
}

// ResolveMasterArticle finds or creates the tenant product aliasing a market
// product. Master articles are created lazily on first purchase observation.
func ResolveMasterArticle(tx *gorm.DB, establishmentId string, supplierId int, marketArticle *MarketMasterArticle, unit string) (*MasterArticle, error) {
	var masterArticle MasterArticle
	err := tx.Where("establishment_id = ? AND market_master_article_id = ?", establishmentId, marketArticle.ID).
		First(&masterArticle).Error
	if err == gorm.ErrRecordNotFound {
		if unit == "" {
			unit = marketArticle.Unit
		}
		masterArticle = MasterArticle{
			EstablishmentId:       establishmentId,
			MarketMasterArticleId: marketArticle.ID,
			SupplierId:            supplierId,
			Name:                  marketArticle.Name,
			Unit:                  unit,
		}
		if err := tx.Create(&masterArticle).Error; err != nil {
			return nil, err
		}
		return &masterArticle, nil
	}
	if err != nil {
		return nil, err
	}
	return &masterArticle, nil
}

// LatestArticleBefore returns the most recent purchase observation strictly
// before the given date, or nil when none exists.
func LatestArticleBefore(tx *gorm.DB, masterArticleId int, before time.Time) (*Article, error) {
	var article Article
	err := tx.Where("master_article_id = ? AND date < ?", masterArticleId, before).
		Order("date DESC, id DESC").
		First(&article).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// RefreshCurrentUnitPrice re-derives the cached price from the latest Article.
func RefreshCurrentUnitPrice(tx *gorm.DB, masterArticleId int) error {
	var article Article
	err := tx.Where("master_article_id = ?", masterArticleId).
		Order("date DESC, id DESC").
		First(&article).Error
	if err == gorm.ErrRecordNotFound {
		return tx.Model(&MasterArticle{}).Where("id = ?", masterArticleId).
			Update("current_unit_price", decimal.Zero).Error
	}
	if err != nil {
		return err
	}
	return tx.Model(&MasterArticle{}).Where("id = ?", masterArticleId).
		Update("current_unit_price", article.UnitPrice).Error
}
