package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id" binding:"required"`
	SupplierId      int             `gorm:"index;not null" json:"supplier_id"`
	InvoiceNumber   string          `gorm:"size:100;not null" json:"invoice_number" binding:"required"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	TotalExclTax    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_excl_tax"`
	TotalInclTax    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_incl_tax"`
	TotalVat        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_vat"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Article is one observed purchase line.
type Article struct {
	ID              int             `gorm:"primary_key" json:"id"`
	MasterArticleId int             `gorm:"index;not null" json:"master_article_id"`
	InvoiceId       int             `gorm:"index;not null" json:"invoice_id"`
	Date            time.Time       `gorm:"index;not null" json:"date"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Discount        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount"`
	DutiesAndTaxes  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"duties_and_taxes"`
	Total           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ResolveInvoice finds an invoice by its natural key (establishment, supplier,
// number) and updates its totals, or creates it.
func ResolveInvoice(tx *gorm.DB, establishmentId string, supplierId int, invoiceNumber string, date time.Time,
	totalExclTax, totalInclTax, totalVat decimal.Decimal) (*Invoice, error) {

	var invoice Invoice
	err := tx.Where("establishment_id = ? AND supplier_id = ? AND invoice_number = ?",
		establishmentId, supplierId, invoiceNumber).First(&invoice).Error
	if err == gorm.ErrRecordNotFound {
		invoice = Invoice{
			EstablishmentId: establishmentId,
			SupplierId:      supplierId,
			InvoiceNumber:   invoiceNumber,
			Date:            date,
			TotalExclTax:    totalExclTax,
			TotalInclTax:    totalInclTax,
			TotalVat:        totalVat,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return nil, err
		}
		return &invoice, nil
	}
	if err != nil {
		return nil, err
	}

	invoice.Date = date
	invoice.TotalExclTax = totalExclTax
	invoice.TotalInclTax = totalInclTax
	invoice.TotalVat = totalVat
	if err := tx.Save(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}
