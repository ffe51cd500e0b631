package models

import (
	"time"

	"github.com/chefbooks/foodcost_backend/utils"
	"gorm.io/gorm"
)

// MergeRequest asks for N duplicate market suppliers to be folded into one
// canonical target. Requests are reviewed before execution; completed means
// every reference has been remapped and the sources are gone.
type MergeRequest struct {
	ID               int                `gorm:"primary_key" json:"id"`
	TargetSupplierId int                `gorm:"index;not null" json:"target_supplier_id"`
	Status           MergeRequestStatus `gorm:"type:enum('pending','accepted','completed','rejected');default:'pending'" json:"status"`
	RequestedBy      string             `gorm:"size:100" json:"requested_by"`
	ReviewedBy       string             `gorm:"size:100" json:"reviewed_by"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type MergeRequestSource struct {
	ID               int `gorm:"primary_key" json:"id"`
	MergeRequestId   int `gorm:"index;not null" json:"merge_request_id"`
	SourceSupplierId int `gorm:"index;not null" json:"source_supplier_id"`
}

type NewMergeRequest struct {
	TargetSupplierId  int    `json:"target_supplier_id" validate:"required"`
	SourceSupplierIds []int  `json:"source_supplier_ids" validate:"required,min=1"`
	RequestedBy       string `json:"requested_by"`
}

func CreateMergeRequest(tx *gorm.DB, input *NewMergeRequest) (*MergeRequest, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var target MarketSupplier
	if err := tx.First(&target, input.TargetSupplierId).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	for _, sourceId := range utils.UniqueSlice(input.SourceSupplierIds) {
		if sourceId == input.TargetSupplierId {
			return nil, utils.NewValidationError("supplier %d cannot be merged into itself", sourceId)
		}
		var source MarketSupplier
		if err := tx.First(&source, sourceId).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		var open int64
		err := tx.Model(&MergeRequestSource{}).
			Joins("JOIN merge_requests ON merge_requests.id = merge_request_sources.merge_request_id").
			Where("merge_request_sources.source_supplier_id = ? AND merge_requests.status IN ?",
				sourceId, []MergeRequestStatus{MergeRequestStatusPending, MergeRequestStatusAccepted}).
			Count(&open).Error
		if err != nil {
			return nil, err
		}
		if open > 0 {
			return nil, utils.NewValidationError("supplier %d already has an open merge request", sourceId)
		}
	}

	request := MergeRequest{
		TargetSupplierId: input.TargetSupplierId,
		Status:           MergeRequestStatusPending,
		RequestedBy:      input.RequestedBy,
	}
	if err := tx.Create(&request).Error; err != nil {
		return nil, err
	}
	for _, sourceId := range utils.UniqueSlice(input.SourceSupplierIds) {
		source := MergeRequestSource{MergeRequestId: request.ID, SourceSupplierId: sourceId}
		if err := tx.Create(&source).Error; err != nil {
			return nil, err
		}
	}
	return &request, nil
}

func GetMergeRequest(tx *gorm.DB, id int) (*MergeRequest, error) {
	var request MergeRequest
	if err := tx.First(&request, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &request, nil
}

func ListMergeRequestSourceIds(tx *gorm.DB, mergeRequestId int) ([]int, error) {
	var ids []int
	err := tx.Model(&MergeRequestSource{}).
		Where("merge_request_id = ?", mergeRequestId).
		Order("id ASC").Pluck("source_supplier_id", &ids).Error
	return ids, err
}

// ReviewMergeRequest moves a pending request to accepted or rejected.
func ReviewMergeRequest(tx *gorm.DB, id int, accept bool, reviewedBy string) (*MergeRequest, error) {
	request, err := GetMergeRequest(tx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != MergeRequestStatusPending {
		return nil, utils.NewValidationError("merge request %d is already %s", id, request.Status)
	}

	if accept {
		request.Status = MergeRequestStatusAccepted
	} else {
		request.Status = MergeRequestStatusRejected
	}
	request.ReviewedBy = reviewedBy
	if err := tx.Save(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}
