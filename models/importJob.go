package models

import (
	"encoding/json"
	"time"

	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ImportJob tracks one invoice import through its lifecycle. A job is created
// pending, and moves to completed or error exactly once.
type ImportJob struct {
	ID              string          `gorm:"primary_key;size:36" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	Status          ImportJobStatus `gorm:"type:enum('pending','completed','error');default:'pending'" json:"status"`
	Payload         string          `gorm:"type:longtext" json:"payload"`
	ErrorMessage    string          `gorm:"type:text" json:"error_message"`
	InvoiceId       *int            `json:"invoice_id"`
	LineCount       int             `gorm:"default:0" json:"line_count"`
	CorrelationId   string          `gorm:"size:36" json:"correlation_id"`
	StartedAt       time.Time       `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt      *time.Time      `json:"finished_at"`
}

// InvoiceImportInput is the parsed payload of one supplier invoice, as
// delivered by the OCR pipeline.
type InvoiceImportInput struct {
	SupplierName  string          `json:"supplier_name" validate:"required"`
	SupplierLabel SupplierLabel   `json:"supplier_label"`
	Siret         string          `json:"siret"`
	VatNumber     string          `json:"vat_number"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	InvoiceNumber string          `json:"invoice_number" validate:"required"`
	Date          time.Time       `json:"date" validate:"required"`
	TotalExclTax  decimal.Decimal `json:"total_excl_tax"`
	TotalInclTax  decimal.Decimal `json:"total_incl_tax"`
	TotalVat      decimal.Decimal `json:"total_vat"`

	Lines []*InvoiceLineInput `json:"lines" validate:"required,min=1,dive"`
}

// InvoiceLineInput is one purchase line of the payload. Quantity must be
// strictly positive; a zero quantity would make the unit price undefined.
type InvoiceLineInput struct {
	ProductName    string          `json:"product_name" validate:"required"`
	Unit           string          `json:"unit"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Discount       decimal.Decimal `json:"discount"`
	DutiesAndTaxes decimal.Decimal `json:"duties_and_taxes"`
	Total          decimal.Decimal `json:"total"`
}

func (line *InvoiceLineInput) Check() error {
	if !line.Quantity.IsPositive() {
		return utils.NewValidationError("line %q: quantity must be positive", line.ProductName)
	}
	if line.UnitPrice.IsNegative() {
		return utils.NewValidationError("line %q: unit price must not be negative", line.ProductName)
	}
	return nil
}

// EffectiveUnitPrice nets discounts and duties into the per-unit price.
func (line *InvoiceLineInput) EffectiveUnitPrice() decimal.Decimal {
	adjustment := line.Discount.Neg().Add(line.DutiesAndTaxes)
	return line.UnitPrice.Add(utils.SafeDiv(adjustment, line.Quantity))
}

// CreateImportJob stores a pending job with its raw payload, so failed runs
// can be inspected and replayed.
func CreateImportJob(tx *gorm.DB, establishmentId string, input *InvoiceImportInput, correlationId string) (*ImportJob, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	job := ImportJob{
		ID:              uuid.NewString(),
		EstablishmentId: establishmentId,
		Status:          ImportJobStatusPending,
		Payload:         string(payload),
		CorrelationId:   correlationId,
	}
	if err := tx.Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ParsePayload decodes the stored invoice payload.
func (job *ImportJob) ParsePayload() (*InvoiceImportInput, error) {
	var input InvoiceImportInput
	if err := json.Unmarshal([]byte(job.Payload), &input); err != nil {
		return nil, utils.NewValidationError("import job %s payload is malformed: %v", job.ID, err)
	}
	return &input, nil
}

// ListPendingImportJobs returns the oldest pending jobs first, optionally
// narrowed to one establishment.
func ListPendingImportJobs(tx *gorm.DB, establishmentId string, limit int) ([]*ImportJob, error) {
	query := tx.Where("status = ?", ImportJobStatusPending)
	if establishmentId != "" {
		query = query.Where("establishment_id = ?", establishmentId)
	}
	var jobs []*ImportJob
	err := query.Order("started_at ASC").Limit(limit).Find(&jobs).Error
	return jobs, err
}

func GetImportJob(tx *gorm.DB, establishmentId string, id string) (*ImportJob, error) {
	var job ImportJob
	err := tx.Where("establishment_id = ? AND id = ?", establishmentId, id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FinishImportJob transitions a pending job to its terminal status. Finishing
// an already-finished job is a programming error and is rejected.
func FinishImportJob(tx *gorm.DB, job *ImportJob, status ImportJobStatus, errorMessage string, invoiceId *int, lineCount int) error {
	if job.Status != ImportJobStatusPending {
		return utils.NewValidationError("import job %s is already %s", job.ID, job.Status)
	}
	now := time.Now()
	job.Status = status
	job.ErrorMessage = errorMessage
	job.InvoiceId = invoiceId
	job.LineCount = lineCount
	job.FinishedAt = &now
	return tx.Save(job).Error
}
