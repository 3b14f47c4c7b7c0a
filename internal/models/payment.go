package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentCancelled PaymentStatus = "cancelled"
)

// planPrices maps each paid plan to its monthly price in BRL.
var planPrices = map[Plan]float64{
	PlanBasic:      4.90,
	PlanPro:        9.90,
	PlanEnterprise: 19.90,
}

// PriceFor returns the monthly price for a paid plan. The second return
// value is false for free or unknown plans, which cannot be purchased.
func PriceFor(p Plan) (float64, bool) {
	price, ok := planPrices[p]
	return price, ok
}

// Payment represents a PIX charge created to upgrade an account's plan.
type Payment struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	UserID       uuid.UUID     `json:"user_id" db:"user_id"`
	Plan         Plan          `json:"plan" db:"plan"`
	Amount       float64       `json:"amount" db:"amount"`
	Status       PaymentStatus `json:"status" db:"status"`
	ProviderID   *string       `json:"provider_id,omitempty" db:"provider_id"`
	QRCode       *string       `json:"qr_code,omitempty" db:"qr_code"`
	QRCodeImage  *string       `json:"qr_code_image,omitempty" db:"qr_code_image"`
	PixCopyPaste *string       `json:"pix_copy_paste,omitempty" db:"pix_copy_paste"`
	ExpiresAt    time.Time     `json:"expires_at" db:"expires_at"`
	PaidAt       *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// IsLive reports whether the payment is still pending and unexpired, and
// therefore reusable instead of creating a duplicate charge.
func (p *Payment) IsLive(now time.Time) bool {
	return p.Status == PaymentPending && p.ExpiresAt.After(now)
}
