package models

import (
	"strings"
	"time"

	"github.com/chefbooks/foodcost_backend/utils"
	"gorm.io/gorm"
)

// MarketSupplier is the cross-tenant canonical supplier. Tenant Suppliers
// alias exactly one MarketSupplier; raw OCR names are remembered as aliases so
// later invoices resolve without re-matching.
type MarketSupplier struct {
	ID        int           `gorm:"primary_key" json:"id"`
	Name      string        `gorm:"size:150;not null;index" json:"name" binding:"required"`
	Label     SupplierLabel `gorm:"type:enum('FOOD','BEVERAGE','OTHER');default:'FOOD'" json:"label"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type MarketSupplierAlias struct {
	ID               int       `gorm:"primary_key" json:"id"`
	MarketSupplierId int       `gorm:"index;not null" json:"market_supplier_id"`
	RawName          string    `gorm:"size:200;not null;index" json:"raw_name"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Supplier is the tenant-scoped view of a MarketSupplier, carrying the
// contact details observed on this establishment's invoices.
type Supplier struct {
	ID               int           `gorm:"primary_key" json:"id"`
	EstablishmentId  string        `gorm:"index;size:36;not null" json:"establishment_id" binding:"required"`
	MarketSupplierId int           `gorm:"index;not null" json:"market_supplier_id"`
	Name             string        `gorm:"size:150;not null" json:"name" binding:"required"`
	Label            SupplierLabel `gorm:"type:enum('FOOD','BEVERAGE','OTHER');default:'FOOD'" json:"label"`
	Siret            string        `gorm:"size:20" json:"siret"`
	VatNumber        string        `gorm:"size:20" json:"vat_number"`
	Email            string        `gorm:"size:100" json:"email"`
	Phone            string        `gorm:"size:20" json:"phone"`
	Address          string        `gorm:"type:text" json:"address"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveMarketSupplier finds the canonical supplier for a cleaned name, first
// by alias on the raw name, then by exact canonical name, creating both the
// supplier and the alias on first sight.
func ResolveMarketSupplier(tx *gorm.DB, rawName string, cleanedName string, label SupplierLabel) (*MarketSupplier, error) {
	if cleanedName == "" {
		return nil, utils.NewValidationError("supplier name is required")
	}

	var alias MarketSupplierAlias
	err := tx.Where("raw_name = ?", rawName).First(&alias).Error
	if err == nil {
		var market MarketSupplier
		if err := tx.First(&market, alias.MarketSupplierId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		return &market, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var market MarketSupplier
	err = tx.Where("LOWER(name) = ?", strings.ToLower(cleanedName)).First(&market).Error
	if err == gorm.ErrRecordNotFound {
		if label == "" {
			label = SupplierLabelFood
		}
		market = MarketSupplier{Name: cleanedName, Label: label}
		if err := tx.Create(&market).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	alias = MarketSupplierAlias{MarketSupplierId: market.ID, RawName: rawName}
	if err := tx.Create(&alias).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

// ResolveSupplier finds or creates the tenant-scoped supplier for a market
// supplier, refreshing contact details from the latest invoice.
func ResolveSupplier(tx *gorm.DB, establishmentId string, market *MarketSupplier, details *Supplier) (*Supplier, error) {
	var supplier Supplier
	err := tx.Where("establishment_id = ? AND market_supplier_id = ?", establishmentId, market.ID).First(&supplier).Error
	if err == gorm.ErrRecordNotFound {
		supplier = Supplier{
			EstablishmentId:  establishmentId,
			MarketSupplierId: market.ID,
			Name:             market.Name,
			Label:            market.Label,
		}
		if details != nil {
			supplier.Siret = details.Siret
			supplier.VatNumber = details.VatNumber
			supplier.Email = details.Email
			supplier.Phone = details.Phone
			supplier.Address = details.Address
		}
		if err := tx.Create(&supplier).Error; err != nil {
			return nil, err
		}
		return &supplier, nil
	}
	if err != nil {
		return nil, err
	}

	if details != nil {
		changed := false
		if details.Siret != "" && details.Siret != supplier.Siret {
			supplier.Siret = details.Siret
			changed = true
		}
		if details.VatNumber != "" && details.VatNumber != supplier.VatNumber {
			supplier.VatNumber = details.VatNumber
			changed = true
		}
		if details.Email != "" && details.Email != supplier.Email {
			supplier.Email = details.Email
			changed = true
		}
		if details.Phone != "" && details.Phone != supplier.Phone {
			supplier.Phone = details.Phone
			changed = true
		}
		if details.Address != "" && details.Address != supplier.Address {
			supplier.Address = details.Address
			changed = true
		}
		if changed {
			if err := tx.Save(&supplier).Error; err != nil {
				return nil, err
			}
		}
	}
	return &supplier, nil
}
