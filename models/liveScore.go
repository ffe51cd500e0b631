package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LiveScore is a rolling 30-day health indicator, one row per type per
// establishment. Scores are 0..100; the global score is the mean of the three
// component scores.
type LiveScore struct {
	ID              int             `gorm:"primary_key" json:"id"`
	EstablishmentId string          `gorm:"index;size:36;not null" json:"establishment_id"`
	Type            LiveScoreType   `gorm:"type:enum('purchase','recipe','financial','global');not null" json:"type"`
	Score           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"score"`
	ComputedAt      time.Time       `gorm:"index;not null" json:"computed_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertLiveScore replaces the current score row for one type.
func UpsertLiveScore(tx *gorm.DB, establishmentId string, scoreType LiveScoreType, score decimal.Decimal, computedAt time.Time) (*LiveScore, error) {
	var existing LiveScore
	err := tx.Where("establishment_id = ? AND type = ?", establishmentId, scoreType).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		existing = LiveScore{
			EstablishmentId: establishmentId,
			Type:            scoreType,
			Score:           score,
			ComputedAt:      computedAt,
		}
		if err := tx.Create(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	}
	if err != nil {
		return nil, err
	}

	existing.Score = score
	existing.ComputedAt = computedAt
	if err := tx.Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func GetLiveScores(tx *gorm.DB, establishmentId string) ([]*LiveScore, error) {
	var scores []*LiveScore
	err := tx.Where("establishment_id = ?", establishmentId).
		Order("type ASC").Find(&scores).Error
	return scores, err
}
