package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// TransactionStatus is the verification state of a drop-off record.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "pending"
	TransactionVerified TransactionStatus = "verified"
	TransactionRejected TransactionStatus = "rejected"
)

// RewardType selects how a drop-off is compensated.
type RewardType string

const (
	RewardTypePoints RewardType = "points"
	RewardTypeCash   RewardType = "cash"
)

// WasteTransaction records one verified user drop-off at a collector point.
// It is the unit record behind dashboard aggregation: created once per scan
// and never mutated afterwards except by status correction.
type WasteTransaction struct {
	Base         `bson:",inline"`
	UserID       utils.SixID       `bson:"user_id" json:"user_id"`
	CollectorID  utils.SixID       `bson:"collector_id" json:"collector_id"`
	WasteType    string            `bson:"waste_type" json:"waste_type"`
	Quantity     float64           `bson:"quantity" json:"quantity"`
	PointsEarned int               `bson:"points_earned" json:"points_earned"`
	Status       TransactionStatus `bson:"status" json:"status"`
	RewardType   RewardType        `bson:"reward_type" json:"reward_type"`
	CashAmount   float64           `bson:"cash_amount,omitempty" json:"cash_amount,omitempty"`
	QRScanned    bool              `bson:"qr_scanned" json:"qr_scanned"`
	Notes        string            `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
}
