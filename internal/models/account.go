package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// Role identifies which account collection an identity belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleCollector Role = "collector"
	RoleVendor    Role = "vendor"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the four known account types.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCollector, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Collection returns the MongoDB collection name for the role.
func (r Role) Collection() string {
	switch r {
	case RoleUser:
		return "users"
	case RoleCollector:
		return "collectors"
	case RoleVendor:
		return "vendors"
	case RoleAdmin:
		return "admins"
	}
	return ""
}

// Account holds the credential and contact fields common to every role.
// Accounts are never hard-deleted; deactivation flips Active to false.
type Account struct {
	Base         `bson:",inline"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"password" json:"-"`
	Phone        string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Address      string    `bson:"address,omitempty" json:"address,omitempty"`
	Active       bool      `bson:"active" json:"active"`
	Verified     bool      `bson:"verified" json:"verified"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// User is a household account that disposes waste and earns points and cash.
type User struct {
	Account            `bson:",inline"`
	Points             int           `bson:"points" json:"points"`
	TotalWasteDisposed float64       `bson:"total_waste_disposed" json:"total_waste_disposed"`
	CashEarned         float64       `bson:"cash_earned" json:"cash_earned"`
	TotalTransactions  int           `bson:"total_transactions" json:"total_transactions"`
	Badges             []utils.SixID `bson:"badges,omitempty" json:"badges,omitempty"`
}

// Collector runs a collection point: it verifies drop-offs, buys waste from
// users and accumulates per-type inventory which it resells to vendors.
type Collector struct {
	Account             `bson:",inline"`
	TotalWasteCollected float64            `bson:"total_waste_collected" json:"total_waste_collected"`
	TotalTransactions   int                `bson:"total_transactions" json:"total_transactions"`
	AcceptedWasteTypes  []string           `bson:"accepted_waste_types" json:"accepted_waste_types"`
	Inventory           map[string]float64 `bson:"inventory,omitempty" json:"inventory,omitempty"`
}

// Vendor purchases bulk waste from collectors and sponsors rewards.
type Vendor struct {
	Account          `bson:",inline"`
	TotalRewards     int `bson:"total_rewards" json:"total_rewards"`
	TotalRedemptions int `bson:"total_redemptions" json:"total_redemptions"`
	TotalPurchases   int `bson:"total_purchases" json:"total_purchases"`
}

// Admin is a back-office account with no transactional counters.
type Admin struct {
	Account `bson:",inline"`
}
