package models

import (
	"time"

	"github.com/UomLeos-RC-WasteManagement/Waste-Management-App-sub000/internal/utils"
)

// RequestStatus is the negotiation state shared by purchase requests.
// Transitions: pending -> accepted -> completed, pending -> rejected,
// pending -> cancelled. All transitions are compare-and-swap guarded.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCompleted RequestStatus = "completed"
	RequestCancelled RequestStatus = "cancelled"
)

// CollectorPurchaseRequest is a collector's bid against a user's waste offer.
type CollectorPurchaseRequest struct {
	Base               `bson:",inline"`
	UserOfferID        utils.SixID   `bson:"user_offer_id" json:"user_offer_id"`
	CollectorID        utils.SixID   `bson:"collector_id" json:"collector_id"`
	UserID             utils.SixID   `bson:"user_id" json:"user_id"`
	OfferedPrice       float64       `bson:"offered_price" json:"offered_price"`
	ProposedPrice      float64       `bson:"proposed_price" json:"proposed_price"`
	FinalPayment       *float64      `bson:"final_payment,omitempty" json:"final_payment,omitempty"`
	Message            string        `bson:"message,omitempty" json:"message,omitempty"`
	ProposedPickupTime *time.Time    `bson:"proposed_pickup_time,omitempty" json:"proposed_pickup_time,omitempty"`
	Status             RequestStatus `bson:"status" json:"status"`
	RespondedAt        *time.Time    `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	CompletedAt        *time.Time    `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt          time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `bson:"updated_at" json:"updated_at"`
}

// PurchaseStatus is the lifecycle state of a vendor purchase.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseCancelled PurchaseStatus = "cancelled"
)

// CollectorResponse records the collector's answer to a vendor purchase.
type CollectorResponse struct {
	Action      string     `bson:"action" json:"action"` // accept | reject
	Message     string     `bson:"message,omitempty" json:"message,omitempty"`
	RespondedAt *time.Time `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
}

// WastePurchase is a vendor's bulk purchase from a collector, optionally
// against a posted WasteOffer. TotalAmount is fixed at creation time as
// Quantity * PricePerUnit and is never re-derived.
type WastePurchase struct {
	Base              `bson:",inline"`
	VendorID          utils.SixID        `bson:"vendor_id" json:"vendor_id"`
	CollectorID       utils.SixID        `bson:"collector_id" json:"collector_id"`
	OfferID           *utils.SixID       `bson:"offer_id,omitempty" json:"offer_id,omitempty"`
	WasteType         string             `bson:"waste_type" json:"waste_type"`
	Quantity          float64            `bson:"quantity" json:"quantity"`
	PricePerUnit      float64            `bson:"price_per_unit" json:"price_per_unit"`
	TotalAmount       float64            `bson:"total_amount" json:"total_amount"`
	Status            PurchaseStatus     `bson:"status" json:"status"`
	PickupDate        *time.Time         `bson:"pickup_date,omitempty" json:"pickup_date,omitempty"`
	CollectorResponse *CollectorResponse `bson:"collector_response,omitempty" json:"collector_response,omitempty"`
	CompletedAt       *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}
