package models

import (
	"time"

	"github.com/google/uuid"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// PromoCode amounts are minor currency units; for PERCENTAGE codes
// DiscountValue is a whole percent.
type PromoCode struct {
	ID             uuid.UUID    `json:"id"`
	Code           string       `json:"code"`
	Description    string       `json:"description,omitempty"`
	DiscountType   DiscountType `json:"discount_type"`
	DiscountValue  int64        `json:"discount_value"`
	MinOrderAmount *int64       `json:"min_order_amount,omitempty"`
	MaxDiscount    *int64       `json:"max_discount,omitempty"`
	UsageLimit     *int         `json:"usage_limit,omitempty"`
	UsedCount      int          `json:"used_count"`
	ValidFrom      time.Time    `json:"valid_from"`
	ValidUntil     time.Time    `json:"valid_until"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// InWindow reports whether t falls inside [ValidFrom, ValidUntil].
func (p *PromoCode) InWindow(t time.Time) bool {
	return !t.Before(p.ValidFrom) && !t.After(p.ValidUntil)
}

// PromoCodePatch carries a partial admin update; nil fields are left untouched.
// A JSON null also decodes to nil, so the optional limits are removed with
// the Clear* flags instead.
type PromoCodePatch struct {
	Description    *string    `json:"description,omitempty"`
	DiscountValue  *int64     `json:"discount_value,omitempty"`
	MinOrderAmount *int64     `json:"min_order_amount,omitempty"`
	MaxDiscount    *int64     `json:"max_discount,omitempty"`
	UsageLimit     *int       `json:"usage_limit,omitempty"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
	IsActive       *bool      `json:"is_active,omitempty"`

	ClearMinOrderAmount bool `json:"clear_min_order_amount,omitempty"`
	ClearMaxDiscount    bool `json:"clear_max_discount,omitempty"`
	ClearUsageLimit     bool `json:"clear_usage_limit,omitempty"`
}

// Apply copies the set fields of patch onto p.
func (patch PromoCodePatch) Apply(p *PromoCode) {
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.DiscountValue != nil {
		p.DiscountValue = *patch.DiscountValue
	}
	if patch.MinOrderAmount != nil {
		p.MinOrderAmount = patch.MinOrderAmount
	}
	if patch.MaxDiscount != nil {
		p.MaxDiscount = patch.MaxDiscount
	}
	if patch.UsageLimit != nil {
		p.UsageLimit = patch.UsageLimit
	}
	if patch.ValidFrom != nil {
		p.ValidFrom = *patch.ValidFrom
	}
	if patch.ValidUntil != nil {
		p.ValidUntil = *patch.ValidUntil
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.ClearMinOrderAmount {
		p.MinOrderAmount = nil
	}
	if patch.ClearMaxDiscount {
		p.MaxDiscount = nil
	}
	if patch.ClearUsageLimit {
		p.UsageLimit = nil
	}
}

type PromoValidation struct {
	Code     string `json:"code"`
	Discount int64  `json:"discount"`
	Message  string `json:"message"`
}
