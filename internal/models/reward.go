package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// Reward is a vendor-sponsored item users can redeem with points.
// StockAvailable == nil means unlimited stock.
type Reward struct {
	Base           `bson:",inline"`
	VendorID       utils.SixID `bson:"vendor_id" json:"vendor_id"`
	Title          string      `bson:"title" json:"title"`
	Description    string      `bson:"description,omitempty" json:"description,omitempty"`
	PointsRequired int         `bson:"points_required" json:"points_required"`
	StockAvailable *int        `bson:"stock_available,omitempty" json:"stock_available,omitempty"`
	ValidFrom      time.Time   `bson:"valid_from" json:"valid_from"`
	ValidUntil     time.Time   `bson:"valid_until" json:"valid_until"`
	Redeemed       int         `bson:"redeemed" json:"redeemed"`
	Active         bool        `bson:"active" json:"active"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `bson:"updated_at" json:"updated_at"`
}

// RedemptionStatus is the state of an issued redemption code.
// Transitions: active -> used, or any -> expired once past ExpiresAt.
type RedemptionStatus string

const (
	RedemptionActive  RedemptionStatus = "active"
	RedemptionUsed    RedemptionStatus = "used"
	RedemptionExpired RedemptionStatus = "expired"
)

// QRPayload is the content encoded into the redemption QR code.
type QRPayload struct {
	Code     string      `bson:"code" json:"code"`
	UserID   utils.SixID `bson:"user_id" json:"user_id"`
	RewardID utils.SixID `bson:"reward_id" json:"reward_id"`
	VendorID utils.SixID `bson:"vendor_id" json:"vendor_id"`
	Nonce    string      `bson:"nonce" json:"nonce"`
}

// RewardRedemption snapshots a user's redemption of a reward. The code is
// globally unique (enforced by index) and consumable at most once.
type RewardRedemption struct {
	Base           `bson:",inline"`
	UserID         utils.SixID      `bson:"user_id" json:"user_id"`
	RewardID       utils.SixID      `bson:"reward_id" json:"reward_id"`
	VendorID       utils.SixID      `bson:"vendor_id" json:"vendor_id"`
	PointsUsed     int              `bson:"points_used" json:"points_used"`
	RedemptionCode string           `bson:"redemption_code" json:"redemption_code"`
	QR             QRPayload        `bson:"qr" json:"qr"`
	Status         RedemptionStatus `bson:"status" json:"status"`
	ExpiresAt      time.Time        `bson:"expires_at" json:"expires_at"`
	UsedAt         *time.Time       `bson:"used_at,omitempty" json:"used_at,omitempty"`
	CreatedAt      time.Time        `bson:"created_at" json:"created_at"`
}
