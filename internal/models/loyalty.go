package models

import (
	"time"

	"github.com/google/uuid"
)

type PointsType string

const (
	PointsEarned   PointsType = "EARNED"
	PointsRedeemed PointsType = "REDEEMED"
)

type PointsEntry struct {
	ID          uuid.UUID  `json:"id"`
	Points      int64      `json:"points"`
	Type        PointsType `json:"type"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"`
}

type LoyaltyAccount struct {
	ID      uuid.UUID     `json:"id"`
	OwnerID string        `json:"owner_id"`
	Points  int64         `json:"points"`
	History []PointsEntry `json:"history"`
}

type RedemptionResult struct {
	RemainingPoints int64 `json:"remaining_points"`
	DiscountAmount  int64 `json:"discount_amount"`
}
