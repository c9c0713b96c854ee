package models

import (
	"time"
)

// BadgeCriteriaType selects which user counter a badge threshold applies to.
type BadgeCriteriaType string

const (
	CriteriaWasteQuantity     BadgeCriteriaType = "waste_quantity"
	CriteriaTransactionsCount BadgeCriteriaType = "transactions_count"
)

// BadgeCriteria is the earning condition for a badge.
type BadgeCriteria struct {
	Type      BadgeCriteriaType `bson:"type" json:"type"`
	Threshold float64           `bson:"threshold" json:"threshold"`
}

// Badge is an achievement users earn through disposal activity. A badge is
// awarded at most once per user; its bonus points are credited on award.
type Badge struct {
	Base        `bson:",inline"`
	Name        string        `bson:"name" json:"name"`
	Description string        `bson:"description,omitempty" json:"description,omitempty"`
	Icon        string        `bson:"icon,omitempty" json:"icon,omitempty"`
	Criteria    BadgeCriteria `bson:"criteria" json:"criteria"`
	BonusPoints int           `bson:"bonus_points" json:"bonus_points"`
	Active      bool          `bson:"active" json:"active"`
	CreatedAt   time.Time     `bson:"created_at" json:"created_at"`
}
