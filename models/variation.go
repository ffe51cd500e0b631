package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variation records a unit price change of a master article observed between
// two consecutive purchases. Alert workers consume these rows.
type Variation struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	MasterArticleId int             `gorm:"index;not null" json:"master_article_id"`
	ArticleId       int             `gorm:"index;not null" json:"article_id"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	OldUnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"old_unit_price"`
	NewUnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"new_unit_price"`
	Percentage      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"percentage"`

	// Alerted is set once the alert sweep has processed the row, whether or
	// not the variation cleared the establishment's trigger.
	Alerted *bool `gorm:"not null;default:false" json:"alerted"`

	// IsDeleted is a soft-delete flag. Supplier merges mark variations of
	// removed products deleted instead of dropping the audit trail.
	IsDeleted *bool     `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// PassesTrigger decides whether the variation's magnitude clears the
// establishment's configured alert threshold.
func (v *Variation) PassesTrigger(trigger SmsVariationTrigger) bool {
	abs := v.Percentage.Abs()
	switch trigger {
	case SmsVariationTrigger5:
		return abs.GreaterThanOrEqual(decimal.NewFromInt(5))
	case SmsVariationTrigger10:
		return abs.GreaterThanOrEqual(decimal.NewFromInt(10))
	default:
		return !v.Percentage.IsZero()
	}
}

// MatchesSmsType checks whether the supplier's label is covered by the
// establishment's alert scope.
func MatchesSmsType(typeSms SmsType, label SupplierLabel) bool {
	switch label {
	case SupplierLabelFood:
		return true
	case SupplierLabelBeverage:
		return typeSms == SmsTypeFoodAndBeverages
	default:
		return false
	}
}

func ListUnalertedVariations(tx *gorm.DB, establishmentId string) ([]*Variation, error) {
	var variations []*Variation
	err := tx.Where("establishment_id = ? AND alerted = ? AND is_deleted = ?", establishmentId, false, false).
		Order("date ASC, id ASC").Find(&variations).Error
	return variations, err
}

func MarkVariationAlerted(tx *gorm.DB, id int) error {
	return tx.Model(&Variation{}).Where("id = ?", id).Update("alerted", true).Error
}

// SoftDeleteVariationsForArticles flags every variation of the given master
// articles as deleted, retaining the rows.
func SoftDeleteVariationsForArticles(tx *gorm.DB, masterArticleIds []int) error {
	if len(masterArticleIds) == 0 {
		return nil
	}
	return tx.Model(&Variation{}).
		Where("master_article_id IN ?", masterArticleIds).
		Update("is_deleted", true).Error
}
